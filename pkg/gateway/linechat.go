package gateway

import (
	"bufio"
	"context"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LineChat is a minimal line-oriented TCP chat transport. A peer connects,
// identifies itself with "hello <addr>", then exchanges "msg <text>" and
// "presence <level>" lines; disconnect counts as going offline. It exists
// so the gateway is usable without an external chat service and doubles as
// the reference ChatTransport implementation.
type LineChat struct {
	listen string
	logger *zap.SugaredLogger

	onMessage  func(Message)
	onPresence func(PresenceEvent)

	mu       sync.Mutex
	conns    map[string]net.Conn
	presence map[string]Presence
	roster   map[string]struct{}
	status   string
}

// NewLineChat returns a transport serving on the listen address.
func NewLineChat(listen string, logger *zap.SugaredLogger) *LineChat {
	return &LineChat{
		listen:   listen,
		logger:   logger,
		conns:    map[string]net.Conn{},
		presence: map[string]Presence{},
		roster:   map[string]struct{}{},
	}
}

func (t *LineChat) OnMessage(f func(Message))        { t.onMessage = f }
func (t *LineChat) OnPresence(f func(PresenceEvent)) { t.onPresence = f }

// Run accepts peers until ctx is canceled.
func (t *LineChat) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", t.listen)
	if err != nil {
		return errors.Wrap(err, "can't listen for chat peers")
	}

	t.logger.Infow("Chat transport listening", zap.String("addr", t.listen))

	go func() {
		<-ctx.Done()
		_ = ln.Close()

		t.mu.Lock()
		defer t.mu.Unlock()
		for _, conn := range t.conns {
			_ = conn.Close()
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return errors.Wrap(err, "can't accept chat peer")
		}

		go t.serve(conn)
	}
}

// serve handles one peer connection.
func (t *LineChat) serve(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)

	var addr string
	defer func() {
		if addr != "" {
			t.drop(addr, conn)
		}
	}()

	for scanner.Scan() {
		verb, rest, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		rest = strings.TrimSpace(rest)

		switch verb {
		case "hello":
			if rest == "" || addr != "" {
				continue
			}

			addr = rest
			t.attach(addr, conn)
		case "msg":
			if addr == "" || t.onMessage == nil {
				continue
			}

			t.onMessage(Message{From: addr, Body: rest})
		case "presence":
			if addr == "" {
				continue
			}

			t.setPresence(addr, Presence(rest))
		case "bye":
			return
		}
	}
}

func (t *LineChat) attach(addr string, conn net.Conn) {
	t.mu.Lock()
	if old := t.conns[addr]; old != nil {
		_ = old.Close()
	}
	t.conns[addr] = conn
	t.roster[addr] = struct{}{}
	status := t.status
	t.mu.Unlock()

	if status != "" {
		_, _ = conn.Write([]byte("status " + status + "\n"))
	}

	t.setPresence(addr, PresenceAvailable)
}

func (t *LineChat) drop(addr string, conn net.Conn) {
	t.mu.Lock()
	current := t.conns[addr] == conn
	if current {
		delete(t.conns, addr)
	}
	t.mu.Unlock()

	if current {
		t.setPresence(addr, PresenceOffline)
	}
}

func (t *LineChat) setPresence(addr string, p Presence) {
	t.mu.Lock()
	old, ok := t.presence[addr]
	if !ok {
		old = PresenceOffline
	}
	t.presence[addr] = p
	t.mu.Unlock()

	if t.onPresence != nil {
		t.onPresence(PresenceEvent{From: addr, Old: old, New: p})
	}
}

// Announce pushes the gateway status line to every connected peer and
// remembers it for peers connecting later.
func (t *LineChat) Announce(status string) error {
	t.mu.Lock()
	t.status = status
	conns := make([]net.Conn, 0, len(t.conns))
	for _, conn := range t.conns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	for _, conn := range conns {
		_, _ = conn.Write([]byte("status " + status + "\n"))
	}

	return nil
}

// Send writes one message line to the peer, failing if it is not connected.
func (t *LineChat) Send(addr, body string) error {
	t.mu.Lock()
	conn := t.conns[addr]
	t.mu.Unlock()

	if conn == nil {
		return errors.Errorf("chat peer %s is not connected", addr)
	}

	body = strings.ReplaceAll(body, "\n", "\nmsg ")
	if _, err := conn.Write([]byte("msg " + body + "\n")); err != nil {
		return errors.Wrapf(err, "can't send to chat peer %s", addr)
	}

	return nil
}

// AddContact puts the address on the roster.
func (t *LineChat) AddContact(addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.roster[addr] = struct{}{}

	return nil
}

// RemoveContact takes the address off the roster and disconnects it. The
// serving goroutine notices the closed connection and flips presence to
// offline on its way out.
func (t *LineChat) RemoveContact(addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.roster, addr)
	if conn := t.conns[addr]; conn != nil {
		_ = conn.Close()
	}

	return nil
}

// Roster lists the known addresses, sorted.
func (t *LineChat) Roster() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	roster := make([]string, 0, len(t.roster))
	for addr := range t.roster {
		roster = append(roster, addr)
	}
	sort.Strings(roster)

	return roster, nil
}

var _ ChatTransport = (*LineChat)(nil)
