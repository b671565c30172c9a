package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3rd/molniya/pkg/config"
	"github.com/a3rd/molniya/pkg/gateway"
	"github.com/a3rd/molniya/pkg/nagios"
)

const testObjects = `
define host {
	host_name	web1
	}
define service {
	host_name	web1
	service_description	http
	}
define contact {
	contact_name	alice
	jid	alice@example.com
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
servicestatus {
host_name=web1
service_description=http
current_state=2
last_hard_state=2
last_state_change=1330000100
last_hard_state_change=1330000160
last_check=1330000500
last_time_ok=1330000090
plugin_output=HTTP CRITICAL
active_checks_enabled=1
}
`

// recordingTransport is a ChatTransport double that records sends.
type recordingTransport struct {
	mu   sync.Mutex
	sent []gateway.Message
	fail string
}

func (r *recordingTransport) Run(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (r *recordingTransport) Announce(string) error         { return nil }
func (r *recordingTransport) AddContact(string) error       { return nil }
func (r *recordingTransport) RemoveContact(string) error    { return nil }
func (r *recordingTransport) Roster() ([]string, error)     { return nil, nil }
func (r *recordingTransport) OnMessage(func(gateway.Message)) {
}
func (r *recordingTransport) OnPresence(func(gateway.PresenceEvent)) {
}

func (r *recordingTransport) Send(addr, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if addr == r.fail {
		return context.DeadlineExceeded
	}

	r.sent = append(r.sent, gateway.Message{From: addr, Body: body})

	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingTransport, *gateway.Registry) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rw"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rw", "nagios.cmd"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects.cache"), []byte(testObjects), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status.dat"), []byte(testStatus), 0o600))

	cfg := &config.Nagios{VarDir: dir, StatusWait: time.Minute}
	require.NoError(t, cfg.Validate())

	logger := zaptest.NewLogger(t).Sugar()
	instance := nagios.NewInstance(cfg, logger)
	require.NoError(t, instance.Prime(context.Background()))

	registry := gateway.NewRegistry()
	chat := &recordingTransport{fail: "down@example.com"}
	mailer := gateway.NewMailer("localhost:25", "nagios@example.net", logger)
	formatter := gateway.NewTextFormatter("")
	router := gateway.NewRouter(registry, instance, chat, mailer, formatter, "jid", logger)

	srv := httptest.NewServer(NewServer("unused", router, chat, logger).Handler())
	t.Cleanup(srv.Close)

	return srv, chat, registry
}

func TestHandleNotify(t *testing.T) {
	srv, chat, registry := newTestServer(t)
	registry.SetPresence("alice@example.com", gateway.PresenceAvailable)

	form := url.Values{
		"policy":  {"xmpp"},
		"type":    {"PROBLEM"},
		"host":    {"web1"},
		"service": {"http"},
		"state":   {"CRITICAL"},
		"output":  {"it broke"},
	}

	resp, err := http.PostForm(srv.URL+"/contact/alice/notify", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	chat.mu.Lock()
	defer chat.mu.Unlock()
	require.Len(t, chat.sent, 1)
	require.Equal(t, "alice@example.com", chat.sent[0].From)
	require.Contains(t, chat.sent[0].Body, "web1/http")
}

func TestHandleNotifyClientErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)

	subtests := []struct {
		name    string
		contact string
		form    url.Values
	}{
		{
			"unknown-contact", "mallory",
			url.Values{"policy": {"xmpp"}, "type": {"PROBLEM"}, "host": {"web1"}},
		},
		{
			"unknown-policy", "alice",
			url.Values{"policy": {"fax"}, "type": {"PROBLEM"}, "host": {"web1"}},
		},
		{
			"unknown-referent", "alice",
			url.Values{"policy": {"xmpp"}, "type": {"PROBLEM"}, "host": {"ghost"}},
		},
		{
			"bad-type", "alice",
			url.Values{"policy": {"xmpp"}, "type": {"EXPLOSION"}, "host": {"web1"}},
		},
		{
			"empty-chain", "alice",
			url.Values{"type": {"PROBLEM"}, "host": {"web1"}},
		},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			resp, err := http.PostForm(srv.URL+"/contact/"+st.contact+"/notify", st.form)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHandleSend(t *testing.T) {
	srv, chat, _ := newTestServer(t)

	t.Run("form-field", func(t *testing.T) {
		resp, err := http.PostForm(srv.URL+"/contact/alice@example.com/send", url.Values{"message": {"hello there"}})
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("raw-body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/contact/alice@example.com/send", "text/plain", strings.NewReader("raw text\n"))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	chat.mu.Lock()
	require.Equal(t, []gateway.Message{
		{From: "alice@example.com", Body: "hello there"},
		{From: "alice@example.com", Body: "raw text"},
	}, chat.sent)
	chat.mu.Unlock()

	t.Run("empty-message", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/contact/alice@example.com/send", "text/plain", strings.NewReader(""))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("transport-error", func(t *testing.T) {
		resp, err := http.PostForm(srv.URL+"/contact/down@example.com/send", url.Values{"message": {"hi"}})
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
