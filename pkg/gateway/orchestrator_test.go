package gateway

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/a3rd/molniya/pkg/config"
	"github.com/a3rd/molniya/pkg/logging"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeChat) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rw"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rw", "nagios.cmd"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects.cache"), []byte(testObjects), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status.dat"), []byte(testStatus), 0o600))

	cfg := &config.Config{
		Nagios: config.Nagios{VarDir: dir, StatusWait: time.Minute},
		Chat:   config.Chat{ContactField: "jid", CheckTimeout: time.Minute},
		SMTP:   config.SMTP{Relay: "localhost:25", From: "nagios@example.net"},
	}
	require.NoError(t, cfg.Nagios.Validate())
	require.NoError(t, cfg.Chat.Validate())

	logs, err := logging.NewLogging("molniya-test", zapcore.DebugLevel, logging.CONSOLE, logging.FileRotation{}, nil)
	require.NoError(t, err)

	chat := newFakeChat()
	o, err := New(cfg, logs, chat)
	require.NoError(t, err)

	return o, chat
}

func TestOrchestratorEndToEnd(t *testing.T) {
	o, chat := newTestOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// The refresh loop announces the status summary once primed.
	require.Eventually(t, func() bool {
		chat.mu.Lock()
		defer chat.mu.Unlock()
		return len(chat.status) > 0 && chat.status[len(chat.status)-1] == "1 problem"
	}, 5*time.Second, 10*time.Millisecond)

	// An inbound status command flows through the inbox to the dispatch
	// worker and back out as a reply.
	chat.onMessage(Message{From: alice, Body: "status"})
	require.Eventually(t, func() bool {
		for _, body := range chat.sentTo(alice) {
			if strings.Contains(body, "CRITICAL: web1/http") {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// alice goes offline; a routed notification is retained, not sent.
	chat.onPresence(PresenceEvent{From: alice, Old: PresenceOffline, New: PresenceAvailable})
	chat.onPresence(PresenceEvent{From: alice, Old: PresenceAvailable, New: PresenceOffline})
	before := len(chat.sentTo(alice))

	require.NoError(t, o.Router().Route(ctx, "alice", []string{"xmpp"}, notify("web1", "http")))
	require.Len(t, chat.sentTo(alice), before, "no chat send while offline")
	require.Equal(t, 1, o.registry.MissedLen(alice))

	// Coming back triggers exactly one catch-up summary.
	chat.onPresence(PresenceEvent{From: alice, Old: PresenceOffline, New: PresenceAvailable})
	require.Eventually(t, func() bool {
		for _, body := range chat.sentTo(alice) {
			if strings.Contains(body, "While you were out:") && strings.Contains(body, "web1/http") {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	require.Zero(t, o.registry.MissedLen(alice))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestOrchestratorDuplicatePresenceDoesNotRepeatCatchUp(t *testing.T) {
	o, chat := newTestOrchestrator(t)

	require.NoError(t, o.instance.Prime(context.Background()))

	chat.onPresence(PresenceEvent{From: alice, New: PresenceAvailable})
	chat.onPresence(PresenceEvent{From: alice, New: PresenceOffline})
	require.NoError(t, o.Router().Route(context.Background(), "alice", []string{"xmpp"}, notify("web1", "http")))

	chat.onPresence(PresenceEvent{From: alice, New: PresenceAvailable})
	require.Len(t, chat.sentTo(alice), 1)

	// A repeated available-level signal is not an edge.
	chat.onPresence(PresenceEvent{From: alice, New: PresenceChat})
	require.Len(t, chat.sentTo(alice), 1)
}
