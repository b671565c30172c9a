package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/a3rd/molniya/pkg/nagios"
)

const helpText = `Commands:
status                          current problem report
check <host>[/<service>]        force an immediate re-check, report the result
ack <host>[/<service>] [text]   acknowledge a problem, optional comment
down <host>[/<service>] <dur> [text]
                                schedule fixed downtime, e.g. "down web01 2h"
@<digit> <ack|check> [...]      act on a recently delivered notification
admin list-roster               list chat roster entries
admin add <addr>                invite a chat address
admin remove <addr>             remove a chat address
help                            this text
<host>[/<service>]              detail view`

const dontUnderstand = "I'm sorry, I didn't quite catch that?"

// commandHandler executes one command for a sender; rest is the line with
// the command word stripped.
type commandHandler func(sender, rest string) (string, error)

// Engine turns one line of chat text into a reply. All execution errors
// are converted to "Oops:" replies at the dispatch boundary; the engine
// never panics a caller.
type Engine struct {
	registry     *Registry
	instance     *nagios.Instance
	chat         ChatTransport
	formatter    Formatter
	contactField string
	checkTimeout time.Duration
	logger       *zap.SugaredLogger

	commands map[string]commandHandler
}

// NewEngine builds the command table. Registering the same command word
// twice is a programming error and fails construction.
func NewEngine(
	registry *Registry, instance *nagios.Instance, chat ChatTransport, formatter Formatter,
	contactField string, checkTimeout time.Duration, logger *zap.SugaredLogger,
) (*Engine, error) {
	e := &Engine{
		registry:     registry,
		instance:     instance,
		chat:         chat,
		formatter:    formatter,
		contactField: contactField,
		checkTimeout: checkTimeout,
		logger:       logger,
		commands:     map[string]commandHandler{},
	}

	for word, handler := range map[string]commandHandler{
		"status": e.cmdStatus,
		"check":  e.cmdCheck,
		"ack":    e.cmdAck,
		"down":   e.cmdDown,
		"admin":  e.cmdAdmin,
		"help":   e.cmdHelp,
	} {
		if err := e.register(word, handler); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func (e *Engine) register(word string, handler commandHandler) error {
	if _, dup := e.commands[word]; dup {
		return errors.Errorf("command word %q registered twice", word)
	}

	e.commands[word] = handler

	return nil
}

// Dispatch executes one inbound line and returns the reply text. It never
// returns an error; failures become "Oops:" replies.
func (e *Engine) Dispatch(sender, line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return dontUnderstand
	}

	reply, err := e.dispatch(sender, line)
	if err != nil {
		e.logger.Warnw("Command failed", zap.String("sender", sender), zap.String("line", line), zap.Error(err))
		return "Oops: " + err.Error()
	}

	return reply
}

func (e *Engine) dispatch(sender, line string) (string, error) {
	word, rest := splitWord(line)

	if strings.HasPrefix(word, "@") {
		return e.cmdReply(sender, word[1:], rest)
	}

	if handler, ok := e.commands[strings.ToLower(word)]; ok {
		return handler(sender, rest)
	}

	// No command word: try the line as an implicit detail request.
	if reply, err := e.detail(line); err == nil {
		return reply, nil
	}

	return dontUnderstand, nil
}

func splitWord(line string) (word, rest string) {
	word, rest, _ = strings.Cut(line, " ")
	return word, strings.TrimSpace(rest)
}

func (e *Engine) snapshot() (*nagios.ConfigSnapshot, error) {
	cfg := e.instance.Snapshot()
	if cfg == nil {
		return nil, errors.New("no configuration snapshot loaded yet")
	}

	return cfg, nil
}

// resolveTarget parses "<host>" or "<host>/<service...>" off the front of
// input and returns the entity plus the unconsumed remainder. Service
// names resolve by longest case-insensitive prefix, so descriptions
// containing spaces still work.
func (e *Engine) resolveTarget(input string) (nagios.Monitored, string, error) {
	cfg, err := e.snapshot()
	if err != nil {
		return nil, "", err
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, "", errors.New("expected a host or host/service")
	}

	token, rest, _ := strings.Cut(input, " ")

	if hostName, svcPart, ok := strings.Cut(token, "/"); ok {
		host := cfg.Host(hostName)
		if host == nil {
			return nil, "", errors.Errorf("unknown host %q", hostName)
		}

		svcInput := svcPart
		if rest != "" {
			svcInput += " " + rest
		}

		svc, remainder, err := cfg.ResolveServiceName(host, svcInput)
		if err != nil {
			return nil, "", err
		}

		return svc, remainder, nil
	}

	host := cfg.Host(token)
	if host == nil {
		return nil, "", errors.Errorf("unknown host %q", token)
	}

	return host, strings.TrimSpace(rest), nil
}

// senderContact maps a chat address back to its monitoring contact.
func (e *Engine) senderContact(sender string) (*nagios.Contact, error) {
	cfg, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	contact := cfg.ContactByProperty(e.contactField, sender)
	if contact == nil {
		return nil, errors.Errorf("no monitoring contact has %s = %q", e.contactField, sender)
	}

	return contact, nil
}

func (e *Engine) cmdStatus(string, string) (string, error) {
	report := e.instance.Report()
	if report == nil {
		return "", errors.New("no status loaded yet")
	}

	return e.formatter.StatusReport(report), nil
}

func (e *Engine) cmdHelp(string, string) (string, error) {
	return helpText, nil
}

func (e *Engine) cmdCheck(sender, rest string) (string, error) {
	target, _, err := e.resolveTarget(rest)
	if err != nil {
		return "", err
	}

	return e.forceCheck(sender, target)
}

// forceCheck schedules an immediate re-check and arranges for the result
// to be sent back once a status reload shows a newer check time. The
// outstanding future tightens the status refresh cadence.
func (e *Engine) forceCheck(sender string, target nagios.Monitored) (string, error) {
	requested := time.Now()
	if err := target.ForceCheck(e.instance.Pipe, requested); err != nil {
		return "", err
	}

	result, cancel := e.instance.Status.NotifyWhen(func(*nagios.StatusSnapshot) bool {
		return target.LastCheck().After(requested)
	})

	go func() {
		select {
		case _, ok := <-result:
			if !ok {
				return
			}

			if err := e.chat.Send(sender, fmt.Sprintf("%s: %s: %s",
				target.Ident(), target.CurrentState(), target.Output())); err != nil {
				e.logger.Errorw("Can't send check result", zap.String("sender", sender), zap.Error(err))
			}
		case <-time.After(e.checkTimeout):
			// Deregister the future, otherwise the status refresh cadence
			// stays tightened forever.
			cancel()

			if err := e.chat.Send(sender, fmt.Sprintf("Oops: no fresh result for %s within %s",
				target.Ident(), e.checkTimeout)); err != nil {
				e.logger.Errorw("Can't send check timeout notice", zap.String("sender", sender), zap.Error(err))
			}
		}
	}()

	return "Checking " + target.Ident(), nil
}

func (e *Engine) cmdAck(sender, rest string) (string, error) {
	target, comment, err := e.resolveTarget(rest)
	if err != nil {
		return "", err
	}

	return e.acknowledge(sender, target, comment)
}

func (e *Engine) acknowledge(sender string, target nagios.Monitored, comment string) (string, error) {
	contact, err := e.senderContact(sender)
	if err != nil {
		return "", err
	}

	if comment == "" {
		comment = "acknowledged via chat"
	}

	opts := nagios.AckOptions{Author: contact.Name, Comment: comment}
	if err := target.Acknowledge(e.instance.Pipe, opts); err != nil {
		return "", err
	}

	return "Acknowledged " + target.Ident(), nil
}

func (e *Engine) cmdDown(sender, rest string) (string, error) {
	target, rest, err := e.resolveTarget(rest)
	if err != nil {
		return "", err
	}

	durText, comment := splitWord(rest)
	if durText == "" {
		return "", errors.New(`expected a downtime duration, e.g. "down web01 2h"`)
	}

	duration, err := time.ParseDuration(durText)
	if err != nil || duration <= 0 {
		return "", errors.Errorf("can't parse downtime duration %q", durText)
	}

	contact, err := e.senderContact(sender)
	if err != nil {
		return "", err
	}

	if comment == "" {
		comment = "downtime via chat"
	}

	from := time.Now()
	to := from.Add(duration)

	switch v := target.(type) {
	case *nagios.Host:
		err = v.ScheduleDowntime(e.instance.Pipe, from, to, contact.Name, comment)
	case *nagios.Service:
		err = v.ScheduleDowntime(e.instance.Pipe, from, to, contact.Name, comment)
	default:
		err = errors.Errorf("can't schedule downtime for %s", target.Ident())
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Scheduled %s of downtime for %s", briefDuration(duration), target.Ident()), nil
}

// cmdReply handles "@<digit> <subcommand>" against the sender's reply slot.
func (e *Engine) cmdReply(sender, digit, rest string) (string, error) {
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		return dontUnderstand, nil
	}

	slot := int(digit[0] - '0')
	n := e.registry.Slot(sender, slot)
	if n == nil {
		return fmt.Sprintf("Sorry, no record of notification %d.", slot), nil
	}

	cfg, err := e.snapshot()
	if err != nil {
		return "", err
	}

	ref, err := n.Referent(cfg)
	if err != nil {
		return "", err
	}

	word, rest := splitWord(rest)
	switch strings.ToLower(word) {
	case "ack":
		return e.acknowledge(sender, ref, rest)
	case "check":
		return e.forceCheck(sender, ref)
	case "":
		return e.detail(ref.Ident())
	default:
		return "", errors.Errorf("can't %q a notification; try ack or check", word)
	}
}

func (e *Engine) cmdAdmin(_, rest string) (string, error) {
	word, rest := splitWord(rest)
	switch strings.ToLower(word) {
	case "list-roster":
		roster, err := e.chat.Roster()
		if err != nil {
			return "", err
		}
		if len(roster) == 0 {
			return "Roster is empty.", nil
		}

		return strings.Join(roster, "\n"), nil
	case "add":
		if rest == "" {
			return "", errors.New("expected a chat address to add")
		}
		if err := e.chat.AddContact(rest); err != nil {
			return "", err
		}

		return "Added " + rest, nil
	case "remove":
		if rest == "" {
			return "", errors.New("expected a chat address to remove")
		}
		if err := e.chat.RemoveContact(rest); err != nil {
			return "", err
		}

		return "Removed " + rest, nil
	default:
		return "", errors.Errorf("unknown admin subcommand %q; try list-roster, add, remove", word)
	}
}

// detail renders the entity view for a bare "<host>[/<service>]" line.
func (e *Engine) detail(input string) (string, error) {
	target, remainder, err := e.resolveTarget(input)
	if err != nil {
		return "", err
	}
	if remainder != "" {
		return "", errors.Errorf("trailing input %q", remainder)
	}

	switch v := target.(type) {
	case *nagios.Host:
		return e.formatter.HostDetail(v), nil
	case *nagios.Service:
		return e.formatter.ServiceDetail(v), nil
	default:
		return "", errors.Errorf("no detail view for %s", target.Ident())
	}
}
