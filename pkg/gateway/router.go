package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/a3rd/molniya/pkg/nagios"
)

// Sentinel errors the HTTP trigger maps to client-fault responses.
var (
	ErrUnknownContact = errors.New("unknown monitoring contact")
	ErrUnknownPolicy  = errors.New("unknown notification policy")
	ErrNoReferent     = errors.New("cannot resolve referent")
)

// Router delivers notifications to monitoring contacts over an ordered
// policy chain: the first channel that succeeds terminates the chain.
type Router struct {
	registry     *Registry
	instance     *nagios.Instance
	chat         ChatTransport
	mailer       *Mailer
	formatter    Formatter
	contactField string
	logger       *zap.SugaredLogger
}

// NewRouter wires a notification router. contactField names the monitoring
// contact property holding the chat address.
func NewRouter(
	registry *Registry, instance *nagios.Instance, chat ChatTransport, mailer *Mailer,
	formatter Formatter, contactField string, logger *zap.SugaredLogger,
) *Router {
	return &Router{
		registry:     registry,
		instance:     instance,
		chat:         chat,
		mailer:       mailer,
		formatter:    formatter,
		contactField: contactField,
		logger:       logger,
	}
}

// Route resolves the monitoring contact and the notification's referent,
// then walks the policy chain until one channel delivers. A chat channel
// whose recipient is unknown or absent, or whose send fails, falls
// through softly; while absent the notification is additionally retained
// in the missed queue for later catch-up. Mail channels terminate the
// chain either way.
func (r *Router) Route(ctx context.Context, contactName string, chain []string, n *Notification) error {
	cfg := r.instance.Snapshot()
	if cfg == nil {
		return errors.New("no configuration snapshot loaded yet")
	}

	contact := cfg.ContactByName(contactName)
	if contact == nil {
		return errors.Wrap(ErrUnknownContact, contactName)
	}

	ref, err := n.Referent(cfg)
	if err != nil {
		return errors.Wrap(ErrNoReferent, err.Error())
	}

	logger := r.logger.With(zap.Stringer("id", n.ID), zap.String("contact", contactName), zap.String("referent", ref.Ident()))

	for _, policy := range chain {
		switch policy {
		case "xmpp", "chat":
			delivered, err := r.routeChat(contact, n, ref, logger)
			if err != nil {
				return err
			}
			if delivered {
				return nil
			}
		case "email":
			return r.routeMail(ctx, contact, "email", n, ref, logger)
		case "pager":
			return r.routeMail(ctx, contact, "pager", n, ref, logger)
		default:
			return errors.Wrap(ErrUnknownPolicy, policy)
		}
	}

	logger.Infow("No channel delivered the notification")

	return nil
}

func (r *Router) routeChat(contact *nagios.Contact, n *Notification, ref nagios.Monitored, logger *zap.SugaredLogger) (bool, error) {
	addr := contact.Prop(r.contactField)
	if addr == "" {
		return false, errors.Errorf("contact %s has no %s property", contact.Name, r.contactField)
	}

	known, online := r.registry.Known(addr)
	if !known {
		logger.Debugw("Chat address never seen, falling through", zap.String("addr", addr))
		return false, nil
	}

	if !online {
		r.registry.QueueMissed(addr, n)
		logger.Infow("Chat contact absent, notification queued for catch-up", zap.String("addr", addr))

		return false, nil
	}

	slot := r.registry.AssignSlot(addr, n)
	if err := r.chat.Send(addr, r.formatter.Notification(n, ref, slot)); err != nil {
		// A failed send is a channel failure: give the slot back and let
		// the next policy in the chain have a go.
		r.registry.ReleaseSlot(addr, slot, n)
		logger.Errorw("Can't send chat notification, falling through", zap.String("addr", addr), zap.Error(err))

		return false, nil
	}

	logger.Infow("Delivered chat notification", zap.String("addr", addr), zap.Int("slot", slot))

	return true, nil
}

func (r *Router) routeMail(
	ctx context.Context, contact *nagios.Contact, field string,
	n *Notification, ref nagios.Monitored, logger *zap.SugaredLogger,
) error {
	addr := contact.Prop(field)
	if addr == "" {
		return errors.Errorf("contact %s has no %s property", contact.Name, field)
	}

	subject := r.formatter.NotificationSubject(n, ref)
	if err := r.mailer.Send(ctx, addr, contact.Name, subject, r.formatter.NotificationBody(n, ref)); err != nil {
		return err
	}

	logger.Infow("Delivered mail notification", zap.String("field", field), zap.String("addr", addr))

	return nil
}

// CatchUp summarizes what a returning chat contact missed: the queue is
// drained unconditionally, survivors are the notifications whose referent
// is still in a non-ok hard state, and at most one summary message goes
// out. Calling it again without new queue entries is a no-op.
func (r *Router) CatchUp(addr string) error {
	missed := r.registry.DrainMissed(addr)
	if len(missed) == 0 {
		return nil
	}

	cfg := r.instance.Snapshot()
	if cfg == nil {
		return errors.New("no configuration snapshot loaded yet")
	}

	byState := map[nagios.State][]string{}
	seen := map[string]bool{}
	for _, n := range missed {
		ref, err := n.Referent(cfg)
		if err != nil {
			r.logger.Debugw("Dropping unresolvable missed notification",
				zap.Stringer("id", n.ID), zap.String("referent", n.Ident()))
			continue
		}

		state := ref.HardState()
		if state == nagios.StateOK || seen[ref.Ident()] {
			continue
		}

		seen[ref.Ident()] = true
		byState[state] = append(byState[state], ref.Ident())
	}

	var segments []string
	for _, state := range []nagios.State{
		nagios.StateDown, nagios.StateUnreachable,
		nagios.StateCritical, nagios.StateWarning, nagios.StateUnknown, nagios.StatePending,
	} {
		if idents := byState[state]; len(idents) > 0 {
			segments = append(segments, fmt.Sprintf("%s: %s", state, strings.Join(idents, ", ")))
		}
	}

	if len(segments) == 0 {
		return nil
	}

	return r.chat.Send(addr, "While you were out: "+strings.Join(segments, "; "))
}
