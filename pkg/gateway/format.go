package gateway

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/a3rd/molniya/pkg/nagios"
)

// Formatter renders domain state into outbound message text. The chat and
// email paths share one implementation here; a markup-capable transport
// would bring its own.
type Formatter interface {
	// StatusMessage is the terse summary pushed as presence status.
	StatusMessage(report *nagios.Report) string
	// StatusReport is the full problem report for the status command.
	StatusReport(report *nagios.Report) string
	// Notification renders a delivered notification with its reply slot.
	Notification(n *Notification, ref nagios.Monitored, slot int) string
	// NotificationSubject is the email subject line for a notification.
	NotificationSubject(n *Notification, ref nagios.Monitored) string
	// NotificationBody is the email body for a notification.
	NotificationBody(n *Notification, ref nagios.Monitored) string
	// HostDetail and ServiceDetail render the implicit detail views.
	HostDetail(h *nagios.Host) string
	ServiceDetail(s *nagios.Service) string
}

// TextFormatter renders plain text. BaseURI, when set, is the monitoring
// web frontend used for detail links.
type TextFormatter struct {
	BaseURI string

	// now is swappable for tests.
	now func() time.Time
}

// NewTextFormatter returns a plain-text formatter linking to baseURI.
func NewTextFormatter(baseURI string) *TextFormatter {
	return &TextFormatter{BaseURI: strings.TrimRight(baseURI, "/"), now: time.Now}
}

func (f *TextFormatter) StatusMessage(report *nagios.Report) string {
	switch n := report.Problems(); n {
	case 0:
		return "All OK"
	case 1:
		return "1 problem"
	default:
		return fmt.Sprintf("%d problems", n)
	}
}

func (f *TextFormatter) StatusReport(report *nagios.Report) string {
	if report.Problems() == 0 {
		return "All OK"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:", f.StatusMessage(report))

	for _, state := range report.HostStates() {
		hosts := report.HostsBy[state]
		if len(hosts) == 0 {
			continue
		}

		idents := make([]string, 0, len(hosts))
		for _, h := range hosts {
			idents = append(idents, h.Ident())
		}

		fmt.Fprintf(&b, "\n%s: %s", state, strings.Join(idents, ", "))
	}

	for _, state := range report.ServiceStates() {
		svcs := report.ServicesBy[state]
		if len(svcs) == 0 {
			continue
		}

		idents := make([]string, 0, len(svcs))
		for _, s := range svcs {
			idents = append(idents, s.Ident())
		}

		fmt.Fprintf(&b, "\n%s: %s", state, strings.Join(idents, ", "))
	}

	return b.String()
}

func (f *TextFormatter) Notification(n *Notification, ref nagios.Monitored, slot int) string {
	return fmt.Sprintf("%s (@%d)", f.NotificationSubject(n, ref), slot)
}

func (f *TextFormatter) NotificationSubject(n *Notification, ref nagios.Monitored) string {
	state := n.State
	if state == "" {
		state = ref.CurrentState().String()
	}

	return fmt.Sprintf("%s: %s is %s", n.Event, ref.Ident(), state)
}

func (f *TextFormatter) NotificationBody(n *Notification, ref nagios.Monitored) string {
	var b strings.Builder

	output := n.Output
	if output == "" {
		output = ref.Output()
	}
	if output != "" {
		b.WriteString(output)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "at %s\n", n.At.Format(time.RFC1123))
	if link := f.entityLink(ref); link != "" {
		b.WriteString(link)
		b.WriteString("\n")
	}

	return b.String()
}

func (f *TextFormatter) HostDetail(h *nagios.Host) string {
	return f.detail(h)
}

func (f *TextFormatter) ServiceDetail(s *nagios.Service) string {
	return f.detail(s)
}

func (f *TextFormatter) detail(m nagios.Monitored) string {
	state := m.CurrentState()
	if state == nagios.StatePending {
		return fmt.Sprintf("%s: PENDING (no check results yet)", m.Ident())
	}

	var b strings.Builder
	now := f.now()

	fmt.Fprintf(&b, "%s: %s", m.Ident(), state)

	type stamped interface {
		SoftSince() time.Time
		HardSince() time.Time
	}
	if s, ok := m.(stamped); ok && !s.SoftSince().IsZero() {
		fmt.Fprintf(&b, " for %s", briefDuration(now.Sub(s.SoftSince())))
		if m.HardState() != state && !s.HardSince().IsZero() {
			fmt.Fprintf(&b, " (hard %s for %s)", m.HardState(), briefDuration(now.Sub(s.HardSince())))
		}
	}

	if !m.LastCheck().IsZero() {
		fmt.Fprintf(&b, ", last check %s ago", briefDuration(now.Sub(m.LastCheck())))
	}

	if output := m.Output(); output != "" {
		fmt.Fprintf(&b, "\n%s", output)
	}
	if link := f.entityLink(m); link != "" {
		fmt.Fprintf(&b, "\n%s", link)
	}

	return b.String()
}

// entityLink builds the monitoring frontend's extended info URI.
func (f *TextFormatter) entityLink(m nagios.Monitored) string {
	if f.BaseURI == "" {
		return ""
	}

	switch v := m.(type) {
	case *nagios.Host:
		return fmt.Sprintf("%s/cgi-bin/extinfo.cgi?type=1&host=%s", f.BaseURI, url.QueryEscape(v.Name))
	case *nagios.Service:
		return fmt.Sprintf("%s/cgi-bin/extinfo.cgi?type=2&host=%s&service=%s",
			f.BaseURI, url.QueryEscape(v.Host.Name), url.QueryEscape(v.Description))
	default:
		return ""
	}
}

// briefDuration renders a duration in at most two of the units week, day,
// hour, minute: "1w2d", "3h26m". Sub-minute durations render as "<1m".
func briefDuration(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}

	minutes := int(d / time.Minute)
	parts := []struct {
		amount int
		unit   string
	}{
		{minutes / (7 * 24 * 60), "w"},
		{minutes / (24 * 60) % 7, "d"},
		{minutes / 60 % 24, "h"},
		{minutes % 60, "m"},
	}

	var b strings.Builder
	used := 0
	for _, p := range parts {
		if p.amount == 0 {
			if used > 0 {
				break
			}

			continue
		}

		fmt.Fprintf(&b, "%d%s", p.amount, p.unit)
		if used++; used == 2 {
			break
		}
	}

	return b.String()
}
