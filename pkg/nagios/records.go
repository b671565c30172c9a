package nagios

import (
	"reflect"

	"github.com/a3rd/molniya/pkg/structify"
	"github.com/a3rd/molniya/pkg/types"
)

// statusTag connects status record fields to status block keys.
const statusTag = "status"

// StatusFields are the fields shared by host and service status records.
type StatusFields struct {
	HostName            string        `status:"host_name"`
	CurrentState        int           `status:"current_state"`
	LastHardState       int           `status:"last_hard_state"`
	LastStateChange     types.UnixSec `status:"last_state_change"`
	LastHardStateChange types.UnixSec `status:"last_hard_state_change"`
	LastCheck           types.UnixSec `status:"last_check"`
	PluginOutput        string        `status:"plugin_output"`
	ActiveChecksEnabled types.Bool    `status:"active_checks_enabled"`
}

// HostStatus is one hoststatus block, parsed.
type HostStatus struct {
	StatusFields `status:",inline"`
	LastTimeUp   types.UnixSec `status:"last_time_up"`
}

// ServiceStatus is one servicestatus block, parsed.
type ServiceStatus struct {
	StatusFields       `status:",inline"`
	ServiceDescription string        `status:"service_description"`
	LastTimeOK         types.UnixSec `status:"last_time_ok"`
}

// statusStructifiers maps status block tags to their record parsers.
// Built at package init so unsupported record types fail fast; tags not
// listed here (info, programstatus, contactstatus, ...) are skipped.
var statusStructifiers = map[string]structify.MapStructifier{
	"hoststatus":    structify.MakeMapStructifier(reflect.TypeOf(HostStatus{}), statusTag),
	"servicestatus": structify.MakeMapStructifier(reflect.TypeOf(ServiceStatus{}), statusTag),
}

// objectTags lists the configuration block tags that contribute to a
// ConfigSnapshot. Tags not listed (hostescalation, hostextinfo, ...) are
// skipped for forward compatibility.
const (
	tagCommand           = "command"
	tagContact           = "contact"
	tagContactGroup      = "contactgroup"
	tagHost              = "host"
	tagHostGroup         = "hostgroup"
	tagService           = "service"
	tagServiceGroup      = "servicegroup"
	tagServiceEscalation = "serviceescalation"
	tagTimePeriod        = "timeperiod"
)
