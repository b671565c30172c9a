package gateway

import "sync"

// RingSize is the number of reply slots per chat contact. Delivered
// notifications get slots 0..9 in turn; the eleventh delivery silently
// overwrites slot 0.
const RingSize = 10

// ChatContact is the gateway's view of one chat address: presence, the
// ring buffer of recently delivered notifications and the queue of
// notifications missed while absent. All fields are guarded by the
// owning Registry's lock.
type ChatContact struct {
	Address  string
	Presence Presence

	seq    int
	ring   [RingSize]*Notification
	missed []*Notification
}

// Registry tracks chat contacts under one coarse lock. The lock covers
// bookkeeping only and is never held across a send.
type Registry struct {
	mu       sync.Mutex
	contacts map[string]*ChatContact
}

// NewRegistry returns an empty contact registry.
func NewRegistry() *Registry {
	return &Registry{contacts: map[string]*ChatContact{}}
}

func (r *Registry) ensureLocked(addr string) *ChatContact {
	c, ok := r.contacts[addr]
	if !ok {
		c = &ChatContact{Address: addr, Presence: PresenceOffline}
		r.contacts[addr] = c
	}

	return c
}

// SetPresence records a presence change and reports whether it is a
// not-available to available edge. Repeated available-level signals are
// not an edge and must not re-trigger catch-up.
func (r *Registry) SetPresence(addr string, p Presence) (edge bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.ensureLocked(addr)
	edge = p.Available() && !c.Presence.Available()
	c.Presence = p

	return edge
}

// Known reports whether the address has been seen, and if so whether it
// is currently reachable.
func (r *Registry) Known(addr string) (known, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[addr]
	if !ok {
		return false, false
	}

	return true, c.Presence.Available()
}

// AssignSlot stores a delivered notification in the contact's next ring
// slot and returns the slot number.
func (r *Registry) AssignSlot(addr string, n *Notification) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.ensureLocked(addr)
	slot := c.seq
	c.ring[slot] = n
	c.seq = (c.seq + 1) % RingSize

	return slot
}

// ReleaseSlot rolls back a slot assignment whose delivery failed, so an
// unseen notification does not burn a reply slot. The rollback only
// applies while the slot still holds n and no later assignment has moved
// the sequence on.
func (r *Registry) ReleaseSlot(addr string, slot int, n *Notification) {
	if slot < 0 || slot >= RingSize {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[addr]
	if !ok || c.ring[slot] != n {
		return
	}

	c.ring[slot] = nil
	if c.seq == (slot+1)%RingSize {
		c.seq = slot
	}
}

// Slot returns the notification currently held by the contact's reply
// slot, or nil if the slot was never assigned.
func (r *Registry) Slot(addr string, slot int) *Notification {
	if slot < 0 || slot >= RingSize {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[addr]
	if !ok {
		return nil
	}

	return c.ring[slot]
}

// QueueMissed appends a notification to the contact's missed queue.
func (r *Registry) QueueMissed(addr string, n *Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.ensureLocked(addr)
	c.missed = append(c.missed, n)
}

// DrainMissed empties and returns the contact's missed queue.
func (r *Registry) DrainMissed(addr string) []*Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[addr]
	if !ok {
		return nil
	}

	missed := c.missed
	c.missed = nil

	return missed
}

// MissedLen returns the length of the contact's missed queue.
func (r *Registry) MissedLen(addr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[addr]
	if !ok {
		return 0
	}

	return len(c.missed)
}
