package gateway

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/a3rd/molniya/pkg/nagios"
)

// Kind discriminates host and service notifications.
type Kind string

const (
	HostKind    Kind = "host"
	ServiceKind Kind = "service"
)

// EventType is the monitoring event class carried by a notification.
type EventType string

const (
	EventProblem         EventType = "PROBLEM"
	EventRecovery        EventType = "RECOVERY"
	EventAcknowledgement EventType = "ACKNOWLEDGEMENT"
	EventCustom          EventType = "CUSTOM"
	EventDowntimeStart   EventType = "DOWNTIMESTART"
	EventDowntimeEnd     EventType = "DOWNTIMEEND"
	EventFlappingStart   EventType = "FLAPPINGSTART"
	EventFlappingStop    EventType = "FLAPPINGSTOP"
)

var eventTypes = map[EventType]struct{}{
	EventProblem: {}, EventRecovery: {}, EventAcknowledgement: {}, EventCustom: {},
	EventDowntimeStart: {}, EventDowntimeEnd: {}, EventFlappingStart: {}, EventFlappingStop: {},
}

// Notification is one monitoring event on its way to a recipient. It is
// ephemeral: delivered ones live on in a recipient's ring buffer, undeliverable
// ones in the missed queue, never both.
type Notification struct {
	// ID correlates log entries across the trigger and routing paths.
	ID      uuid.UUID
	Kind    Kind
	Event   EventType
	Host    string
	Service string
	State   string
	Output  string
	At      time.Time

	// referent is resolved once and cached for the notification's lifetime.
	referent nagios.Monitored
}

// NotificationFromValues builds a notification from HTTP trigger form
// fields: type, host, service (optional), state, output.
func NotificationFromValues(values url.Values) (*Notification, error) {
	event := EventType(strings.ToUpper(values.Get("type")))
	if _, ok := eventTypes[event]; !ok {
		return nil, errors.Errorf("unknown notification type %q", values.Get("type"))
	}

	host := values.Get("host")
	if host == "" {
		return nil, errors.New("notification lacks a host")
	}

	n := &Notification{
		ID:      uuid.New(),
		Kind:    HostKind,
		Event:   event,
		Host:    host,
		Service: values.Get("service"),
		State:   values.Get("state"),
		Output:  values.Get("output"),
		At:      time.Now(),
	}
	if n.Service != "" {
		n.Kind = ServiceKind
	}

	return n, nil
}

// Referent resolves the notification's monitored entity against cfg,
// caching the result so replies keep addressing the entity the
// notification was about even across configuration reloads.
func (n *Notification) Referent(cfg *nagios.ConfigSnapshot) (nagios.Monitored, error) {
	if n.referent != nil {
		return n.referent, nil
	}

	switch n.Kind {
	case HostKind:
		if host := cfg.Host(n.Host); host != nil {
			n.referent = host
			return host, nil
		}
	case ServiceKind:
		if svc := cfg.Service(n.Host, n.Service); svc != nil {
			n.referent = svc
			return svc, nil
		}
	}

	return nil, errors.Errorf("cannot resolve referent %s", n.Ident())
}

// Ident is the notification's entity identity, resolved or not.
func (n *Notification) Ident() string {
	if n.Service != "" {
		return n.Host + "/" + n.Service
	}

	return n.Host
}
