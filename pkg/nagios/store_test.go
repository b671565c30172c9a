package nagios

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3rd/molniya/pkg/config"
	"github.com/a3rd/molniya/pkg/fscache"
)

func newTestInstance(t *testing.T, statusWait time.Duration) (*Instance, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rw"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rw", "nagios.cmd"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects.cache"), []byte(testObjects), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status.dat"), []byte(testStatus), 0o600))

	cfg := &config.Nagios{VarDir: dir, StatusWait: statusWait}
	require.NoError(t, cfg.Validate())

	return NewInstance(cfg, zaptest.NewLogger(t).Sugar()), dir
}

func TestInstancePrime(t *testing.T) {
	inst, _ := newTestInstance(t, time.Minute)

	require.NoError(t, inst.Prime(context.Background()))

	require.NotNil(t, inst.Snapshot())
	require.NotNil(t, inst.Report())
	require.Equal(t, 2, inst.Report().Problems())
}

func TestInstanceStatusBeforeConfig(t *testing.T) {
	inst, _ := newTestInstance(t, time.Minute)

	// The status loader needs a configuration snapshot to resolve against.
	require.False(t, inst.Status.RefreshIfStale())

	_, loaded := inst.Status.Current()
	require.False(t, loaded)
}

func TestInstanceRefreshConfigWaitsForStatus(t *testing.T) {
	inst, dir := newTestInstance(t, time.Minute)
	require.NoError(t, inst.Prime(context.Background()))

	// An unchanged configuration file must not force a status wait.
	require.NoError(t, inst.RefreshConfig(context.Background()))

	// Rewrite both files with the status fresher than the configuration, as
	// a monitor reload would. The new snapshot drops host db01, so a
	// successful coordinated reload must resolve records against it.
	future := time.Now().Add(2 * time.Second)
	withoutDB := `
define host {
	host_name	web01
	}
define service {
	host_name	web01
	service_description	disk
	}
`
	statusWithoutDB := `
hoststatus {
host_name=web01
current_state=0
last_hard_state=0
last_state_change=1330000100
last_hard_state_change=1330000100
last_check=1330000500
last_time_up=1330000500
plugin_output=PING OK
active_checks_enabled=1
}
servicestatus {
host_name=web01
service_description=disk
current_state=0
last_hard_state=0
last_state_change=1330000300
last_hard_state_change=1330000360
last_check=1330000700
last_time_ok=1330000700
plugin_output=DISK OK
active_checks_enabled=1
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects.cache"), []byte(withoutDB), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status.dat"), []byte(statusWithoutDB), 0o600))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "objects.cache"), future, future))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "status.dat"), future.Add(time.Second), future.Add(time.Second)))

	require.NoError(t, inst.RefreshConfig(context.Background()))

	require.Nil(t, inst.Snapshot().Host("db01"))
	require.Equal(t, 0, inst.Report().Problems())
}

func TestInstanceConcurrentStatusReads(t *testing.T) {
	inst, dir := newTestInstance(t, time.Minute)
	require.NoError(t, inst.Prime(context.Background()))

	svc := inst.Snapshot().Host("web01").Services["disk"]
	require.NotNil(t, svc)

	// Reload in a loop while reading the same entity from this goroutine,
	// as the refresh loop and the dispatch worker do at runtime. Each pass
	// makes the status file look newer so the reload actually rewrites the
	// entity's state fields.
	statusPath := filepath.Join(dir, "status.dat")
	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := 1; i <= 50; i++ {
			at := time.Now().Add(time.Duration(i) * time.Second)
			if os.Chtimes(statusPath, at, at) != nil {
				return
			}

			inst.RefreshStatus()
		}
	}()

	for i := 0; i < 500; i++ {
		_ = svc.CurrentState()
		_ = svc.Output()
		_ = svc.LastCheck()
	}

	<-done
	require.Equal(t, StateCritical, svc.CurrentState())
}

func TestInstanceRefreshConfigTimesOut(t *testing.T) {
	inst, dir := newTestInstance(t, 100*time.Millisecond)
	require.NoError(t, inst.Prime(context.Background()))

	// Touch only the configuration; the status file stays behind it.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "objects.cache"), future, future))

	err := inst.RefreshConfig(context.Background())
	require.ErrorIs(t, err, fscache.ErrTimeout)
}
