package gateway

import "context"

// Presence is a chat presence level as announced by the transport.
type Presence string

const (
	PresenceAvailable Presence = "available"
	PresenceChat      Presence = "chat"
	PresenceAway      Presence = "away"
	PresenceXA        Presence = "xa"
	PresenceDND       Presence = "dnd"
	PresenceOffline   Presence = "offline"
)

// Available reports whether the presence level counts as reachable for
// notification delivery. Only available and chat do; away, xa and dnd are
// treated as absent.
func (p Presence) Available() bool {
	return p == PresenceAvailable || p == PresenceChat
}

// Message is one inbound chat line with its sender address.
type Message struct {
	From string
	Body string
}

// PresenceEvent is one presence change for a chat address.
type PresenceEvent struct {
	From string
	Old  Presence
	New  Presence
}

// ChatTransport is the wire side of the gateway. Implementations own their
// connection lifecycle including reconnects; the gateway only re-announces
// its status after being told a message or presence arrived. Callbacks must
// be registered before Run and may be invoked concurrently.
type ChatTransport interface {
	// Run serves the transport until ctx is canceled.
	Run(ctx context.Context) error
	// Announce publishes the gateway's own presence status text.
	Announce(status string) error
	// Send delivers body to the chat address.
	Send(addr, body string) error

	// Roster management.
	AddContact(addr string) error
	RemoveContact(addr string) error
	Roster() ([]string, error)

	// OnMessage registers the inbound message callback.
	OnMessage(func(Message))
	// OnPresence registers the presence change callback.
	OnPresence(func(PresenceEvent))
}
