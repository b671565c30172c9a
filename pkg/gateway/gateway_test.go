package gateway

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3rd/molniya/pkg/config"
	"github.com/a3rd/molniya/pkg/nagios"
)

const testObjects = `
define host {
	host_name	web1
	}
define host {
	host_name	host1
	}
define service {
	host_name	web1
	service_description	http
	}
define service {
	host_name	host1
	service_description	disk
	}
define service {
	host_name	host1
	service_description	diskspace
	}
define service {
	host_name	host1
	service_description	diskio
	}
define contact {
	contact_name	alice
	jid	alice@example.com
	email	alice@example.net
	pager	alice-pager@example.net
	}
define contact {
	contact_name	bob
	jid	bob@example.com
	}
`

const testStatus = `
hoststatus {
host_name=web1
current_state=0
last_hard_state=0
last_state_change=1330000000
last_hard_state_change=1330000000
last_check=1330000500
last_time_up=1330000500
plugin_output=PING OK
active_checks_enabled=1
}
hoststatus {
host_name=host1
current_state=0
last_hard_state=0
last_state_change=1330000000
last_hard_state_change=1330000000
last_check=1330000500
last_time_up=1330000500
plugin_output=PING OK
active_checks_enabled=1
}
servicestatus {
host_name=web1
service_description=http
current_state=2
last_hard_state=2
last_state_change=1330000100
last_hard_state_change=1330000160
last_check=1330000500
last_time_ok=1330000090
plugin_output=HTTP CRITICAL - connection refused
active_checks_enabled=1
}
servicestatus {
host_name=host1
service_description=disk
current_state=0
last_hard_state=0
last_state_change=1330000000
last_hard_state_change=1330000000
last_check=1330000500
last_time_ok=1330000500
plugin_output=DISK OK
active_checks_enabled=1
}
servicestatus {
host_name=host1
service_description=diskspace
current_state=0
last_hard_state=0
last_state_change=1330000000
last_hard_state_change=1330000000
last_check=1330000500
last_time_ok=1330000500
plugin_output=DISK OK
active_checks_enabled=1
}
servicestatus {
host_name=host1
service_description=diskio
current_state=0
last_hard_state=0
last_state_change=1330000000
last_hard_state_change=1330000000
last_check=1330000500
last_time_ok=1330000500
plugin_output=DISK OK
active_checks_enabled=1
}
`

// fakeChat is the ChatTransport test double: it records sends and lets
// tests inject inbound messages and presence events.
type fakeChat struct {
	mu       sync.Mutex
	sent     []Message
	status   []string
	roster   []string
	sendErrs map[string]error

	onMessage  func(Message)
	onPresence func(PresenceEvent)
}

func newFakeChat() *fakeChat {
	return &fakeChat{sendErrs: map[string]error{}}
}

func (f *fakeChat) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeChat) Announce(status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.status = append(f.status, status)

	return nil
}

func (f *fakeChat) Send(addr, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.sendErrs[addr]; err != nil {
		return err
	}

	f.sent = append(f.sent, Message{From: addr, Body: body})

	return nil
}

func (f *fakeChat) AddContact(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.roster = append(f.roster, addr)

	return nil
}

func (f *fakeChat) RemoveContact(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, a := range f.roster {
		if a == addr {
			f.roster = append(f.roster[:i], f.roster[i+1:]...)
			break
		}
	}

	return nil
}

func (f *fakeChat) Roster() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.roster...), nil
}

func (f *fakeChat) OnMessage(h func(Message))        { f.onMessage = h }
func (f *fakeChat) OnPresence(h func(PresenceEvent)) { f.onPresence = h }

// sentTo returns the bodies sent to addr so far.
func (f *fakeChat) sentTo(addr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var bodies []string
	for _, m := range f.sent {
		if m.From == addr {
			bodies = append(bodies, m.Body)
		}
	}

	return bodies
}

// fixture bundles a primed gateway over temp monitoring files with fake
// chat and mail sides.
type fixture struct {
	dir      string
	instance *nagios.Instance
	registry *Registry
	chat     *fakeChat
	router   *Router
	engine   *Engine
	mails    *[]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rw"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rw", "nagios.cmd"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects.cache"), []byte(testObjects), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status.dat"), []byte(testStatus), 0o600))

	nagiosCfg := &config.Nagios{VarDir: dir, StatusWait: time.Minute}
	require.NoError(t, nagiosCfg.Validate())

	logger := zaptest.NewLogger(t).Sugar()
	instance := nagios.NewInstance(nagiosCfg, logger)
	require.NoError(t, instance.Prime(context.Background()))

	registry := NewRegistry()
	chat := newFakeChat()
	formatter := NewTextFormatter("http://nagios.example.net")

	var mails []string
	mailer := NewMailer("localhost:25", "nagios@example.net", logger)
	mailer.submit = func(relay, from string, to []string, msg []byte) error {
		mails = append(mails, string(msg))
		return nil
	}

	router := NewRouter(registry, instance, chat, mailer, formatter, "jid", logger)

	engine, err := NewEngine(registry, instance, chat, formatter, "jid", 100*time.Millisecond, logger)
	require.NoError(t, err)

	return &fixture{
		dir:      dir,
		instance: instance,
		registry: registry,
		chat:     chat,
		router:   router,
		engine:   engine,
		mails:    &mails,
	}
}

// notify builds a service problem notification for the fixture.
func notify(host, service string) *Notification {
	n, err := NotificationFromValues(map[string][]string{
		"type":    {"PROBLEM"},
		"host":    {host},
		"service": {service},
		"state":   {"CRITICAL"},
		"output":  {"it broke"},
	})
	if err != nil {
		panic(err)
	}

	return n
}
