package nagios

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Directive names an external command accepted on the monitoring command
// channel. Only the directives the gateway actually issues are defined;
// anything else stays out on purpose.
type Directive string

const (
	AcknowledgeHostProblem     Directive = "ACKNOWLEDGE_HOST_PROBLEM"
	AcknowledgeSvcProblem      Directive = "ACKNOWLEDGE_SVC_PROBLEM"
	ScheduleForcedHostCheck    Directive = "SCHEDULE_FORCED_HOST_CHECK"
	ScheduleForcedSvcCheck     Directive = "SCHEDULE_FORCED_SVC_CHECK"
	ScheduleHostDowntime       Directive = "SCHEDULE_HOST_DOWNTIME"
	ScheduleSvcDowntime        Directive = "SCHEDULE_SVC_DOWNTIME"
	SendCustomHostNotification Directive = "SEND_CUSTOM_HOST_NOTIFICATION"
	SendCustomSvcNotification  Directive = "SEND_CUSTOM_SVC_NOTIFICATION"
)

// CommandPipe writes timestamped external commands to the monitoring
// command FIFO. Writes are serialized; each one opens the pipe anew so a
// restarted monitor picks them up without gateway intervention.
type CommandPipe struct {
	path string
	mu   sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewCommandPipe returns a pipe writer for the FIFO at path.
func NewCommandPipe(path string) *CommandPipe {
	return &CommandPipe{path: path, now: time.Now}
}

// Submit formats and writes one command line:
//
//	[<unix-ts>] DIRECTIVE;arg;arg\n
//
// Argument values are stringified with fmt; semicolons inside free-text
// arguments would corrupt the line and are rejected.
func (p *CommandPipe) Submit(d Directive, args ...interface{}) error {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, string(d))
	for _, arg := range args {
		s := fmt.Sprint(arg)
		if strings.ContainsAny(s, ";\n") {
			return errors.Errorf("command argument %q contains a delimiter", s)
		}

		parts = append(parts, s)
	}

	line := fmt.Sprintf("[%d] %s\n", p.now().Unix(), strings.Join(parts, ";"))

	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return errors.Wrap(err, "can't open command pipe")
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return errors.Wrap(err, "can't write command")
	}

	return nil
}
