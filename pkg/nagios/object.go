package nagios

import (
	"sync"
	"time"

	"github.com/a3rd/molniya/pkg/types"
)

// StateInfo carries the monitoring state mutated in place on hosts and
// services by status reloads. No history is kept beyond these fields.
// Reloads run concurrently with readers on other goroutines, so every
// access goes through the embedded lock.
type StateInfo struct {
	mu sync.RWMutex

	soft         State
	hard         State
	softSince    time.Time
	hardSince    time.Time
	lastOK       time.Time
	lastCheck    time.Time
	output       string
	activeChecks types.Bool
	hasStatus    bool
}

// CurrentState is soft-state-biased: the most recent check result wins for
// display and classification. Hard state stays authoritative for
// notification and acknowledgement semantics.
func (s *StateInfo) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.hasStatus {
		return s.soft
	}

	return StatePending
}

// HardState returns the confirmed state, or Pending before any status reload.
func (s *StateInfo) HardState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasStatus {
		return StatePending
	}

	return s.hard
}

func (s *StateInfo) SoftSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.softSince
}

func (s *StateInfo) HardSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hardSince
}

func (s *StateInfo) LastOK() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastOK
}

func (s *StateInfo) LastCheck() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastCheck
}

// Output returns the free-text plugin output of the last check.
func (s *StateInfo) Output() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.output
}

// ActiveChecks reports whether active checks are enabled for the entity.
func (s *StateInfo) ActiveChecks() types.Bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeChecks
}

func (s *StateInfo) update(states map[int]State, rec *StatusFields, lastOK types.UnixSec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.soft = states[rec.CurrentState]
	s.hard = states[rec.LastHardState]
	s.softSince = rec.LastStateChange.Time()
	s.hardSince = rec.LastHardStateChange.Time()
	s.lastOK = lastOK.Time()
	s.lastCheck = rec.LastCheck.Time()
	s.output = rec.PluginOutput
	s.activeChecks = rec.ActiveChecksEnabled
	s.hasStatus = true
}

// UpdateState overwrites the host's state from a status record.
func (h *Host) UpdateState(rec *HostStatus) {
	h.update(hostStates, &rec.StatusFields, rec.LastTimeUp)
}

// UpdateState overwrites the service's state from a status record.
func (s *Service) UpdateState(rec *ServiceStatus) {
	s.update(serviceStates, &rec.StatusFields, rec.LastTimeOK)
}

// Monitored is the common surface of hosts and services: everything a
// notification referent or a command target needs to offer.
type Monitored interface {
	// Ident is the terse identity used in messages: "host" or "host/service".
	Ident() string
	CurrentState() State
	HardState() State
	LastCheck() time.Time
	Output() string

	// Acknowledge submits a problem acknowledgement for the entity.
	Acknowledge(pipe *CommandPipe, opts AckOptions) error
	// ForceCheck schedules an immediate forced check of the entity.
	ForceCheck(pipe *CommandPipe, at time.Time) error
}

// Host is a monitored host with its services attached.
type Host struct {
	StateInfo

	Name     string
	Props    map[string]string
	Services map[string]*Service
}

// Ident implements the Monitored interface.
func (h *Host) Ident() string { return h.Name }

// Acknowledge implements the Monitored interface.
func (h *Host) Acknowledge(pipe *CommandPipe, opts AckOptions) error {
	return pipe.Submit(AcknowledgeHostProblem,
		h.Name, opts.sticky(), opts.notify(), opts.persistent(), opts.Author, opts.Comment)
}

// ForceCheck implements the Monitored interface.
func (h *Host) ForceCheck(pipe *CommandPipe, at time.Time) error {
	return pipe.Submit(ScheduleForcedHostCheck, h.Name, at.Unix())
}

// ScheduleDowntime submits fixed downtime for the host.
func (h *Host) ScheduleDowntime(pipe *CommandPipe, from, to time.Time, author, comment string) error {
	return pipe.Submit(ScheduleHostDowntime,
		h.Name, from.Unix(), to.Unix(), 1, 0, int64(to.Sub(from).Seconds()), author, comment)
}

// Service is a monitored service. Its description is unique per host only.
type Service struct {
	StateInfo

	Host        *Host
	Description string
	Props       map[string]string
}

// Ident implements the Monitored interface.
func (s *Service) Ident() string { return s.Host.Name + "/" + s.Description }

// Acknowledge implements the Monitored interface.
func (s *Service) Acknowledge(pipe *CommandPipe, opts AckOptions) error {
	return pipe.Submit(AcknowledgeSvcProblem,
		s.Host.Name, s.Description, opts.sticky(), opts.notify(), opts.persistent(), opts.Author, opts.Comment)
}

// ForceCheck implements the Monitored interface.
func (s *Service) ForceCheck(pipe *CommandPipe, at time.Time) error {
	return pipe.Submit(ScheduleForcedSvcCheck, s.Host.Name, s.Description, at.Unix())
}

// ScheduleDowntime submits fixed downtime for the service.
func (s *Service) ScheduleDowntime(pipe *CommandPipe, from, to time.Time, author, comment string) error {
	return pipe.Submit(ScheduleSvcDowntime,
		s.Host.Name, s.Description, from.Unix(), to.Unix(), 1, 0, int64(to.Sub(from).Seconds()), author, comment)
}

// Assert interface compliance.
var (
	_ Monitored = (*Host)(nil)
	_ Monitored = (*Service)(nil)
)

// AckOptions carries acknowledgement parameters. The zero value of the
// flag fields maps to the conventional defaults: non-sticky, notify,
// persistent comment.
type AckOptions struct {
	Sticky    bool
	NoNotify  bool
	Ephemeral bool
	Author    string
	Comment   string
}

func (o AckOptions) sticky() int {
	if o.Sticky {
		return 2 // sticky acknowledgements use level 2 on the command channel
	}

	return 0
}

func (o AckOptions) notify() int {
	if o.NoNotify {
		return 0
	}

	return 1
}

func (o AckOptions) persistent() int {
	if o.Ephemeral {
		return 0
	}

	return 1
}

// Contact is a monitoring contact; distinct from a chat contact, the two
// are joined via a configured property field (e.g. an "xmpp" address).
type Contact struct {
	Name  string
	Props map[string]string
}

// Prop returns the named contact property, or "" if absent.
func (c *Contact) Prop(field string) string {
	return c.Props[field]
}

// GroupKind discriminates host, service and contact groups.
type GroupKind string

const (
	HostGroupKind    GroupKind = "hostgroup"
	ServiceGroupKind GroupKind = "servicegroup"
	ContactGroupKind GroupKind = "contactgroup"
)

// Group is a named set of member references, resolved within the snapshot
// it was built from.
type Group struct {
	Kind    GroupKind
	Name    string
	Props   map[string]string
	Members []string
}

// Command is a monitoring command definition.
type Command struct {
	Name  string
	Props map[string]string
}

// TimePeriod is a monitoring time period definition.
type TimePeriod struct {
	Name  string
	Props map[string]string
}

// ServiceEscalation is a service escalation definition.
type ServiceEscalation struct {
	Props map[string]string
}
