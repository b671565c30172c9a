package nagios

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/a3rd/molniya/pkg/config"
	"github.com/a3rd/molniya/pkg/fscache"
)

// Instance ties the two snapshot caches and the command pipe together.
// The configuration cache is the leader: whenever it reloads, the status
// source is forced to catch up before the instance is considered
// consistent again, because the status loader resolves its records
// against the configuration snapshot currently cached.
type Instance struct {
	Config *fscache.Cache[*ConfigSnapshot]
	Status *fscache.Cache[*StatusSnapshot]
	Pipe   *CommandPipe

	statusWait time.Duration
	logger     *zap.SugaredLogger
}

// NewInstance wires caches over the configured monitoring files.
func NewInstance(cfg *config.Nagios, logger *zap.SugaredLogger) *Instance {
	inst := &Instance{
		Pipe:       NewCommandPipe(cfg.CommandFile),
		statusWait: cfg.StatusWait,
		logger:     logger,
	}

	inst.Config = fscache.New(cfg.ObjectsFile, func(raw []byte, modTime time.Time) (*ConfigSnapshot, error) {
		objs, err := ParseObjects(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}

		return BuildConfigSnapshot(objs, modTime)
	}, logger)

	inst.Status = fscache.New(cfg.StatusFile, func(raw []byte, modTime time.Time) (*StatusSnapshot, error) {
		// Status records resolve against the cached configuration; Current
		// avoids re-entering the config cache's refresh path.
		snapshot, ok := inst.Config.Current()
		if !ok {
			return nil, errors.New("no configuration snapshot loaded yet")
		}

		objs, err := ParseStatus(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}

		return ApplyStatus(snapshot, objs, modTime)
	}, logger)

	return inst
}

// Prime performs the initial consistent load: configuration first, then a
// status source at least as fresh as it. Called once at startup; errors
// here are fatal to the caller.
func (i *Instance) Prime(ctx context.Context) error {
	if _, err := i.Config.Get(); err != nil {
		return errors.Wrap(err, "can't load configuration snapshot")
	}

	if err := i.Status.WaitForFresherThan(ctx, i.Config.ModTime(), i.statusWait); err != nil {
		return errors.Wrap(err, "can't load status snapshot")
	}

	return nil
}

// RefreshConfig reloads the configuration snapshot if its file changed.
// A reload invalidates every cached state, so the status source must then
// publish a snapshot at least as fresh as the new configuration; if the
// monitor does not write one within the configured wait, the instance is
// inconsistent and the error is fatal to the caller.
func (i *Instance) RefreshConfig(ctx context.Context) error {
	if !i.Config.RefreshIfStale() {
		return nil
	}

	i.logger.Infow("Configuration reloaded, waiting for a matching status snapshot",
		zap.Time("config_mod_time", i.Config.ModTime()))

	if err := i.Status.WaitForFresherThan(ctx, i.Config.ModTime(), i.statusWait); err != nil {
		return errors.Wrap(err, "status source did not catch up with reloaded configuration")
	}

	return nil
}

// RefreshStatus reloads the status snapshot if its file changed. Failed
// reloads keep the previous snapshot and are logged, not returned.
func (i *Instance) RefreshStatus() {
	i.Status.RefreshIfStale()
}

// Report returns the current problem report, or nil before the first load.
func (i *Instance) Report() *Report {
	snapshot, ok := i.Status.Current()
	if !ok {
		return nil
	}

	return snapshot.Report
}

// Snapshot returns the current configuration snapshot, or nil before the
// first load.
func (i *Instance) Snapshot() *ConfigSnapshot {
	snapshot, ok := i.Config.Current()
	if !ok {
		return nil
	}

	return snapshot
}
