package nagios

import (
	"time"

	"github.com/pkg/errors"
)

// StatusSnapshot is the outcome of one status reload: the source
// modification time it was built from and the report derived from the
// freshly updated configuration snapshot.
type StatusSnapshot struct {
	ModTime time.Time
	Report  *Report
}

// ApplyStatus mutates the configuration snapshot's hosts and services in
// place from parsed status blocks and derives a fresh report. A status
// record naming an unknown host or service means the two source files
// disagree and aborts the reload; blocks of unhandled types are skipped.
func ApplyStatus(cfg *ConfigSnapshot, objs []RawObject, modTime time.Time) (*StatusSnapshot, error) {
	for _, obj := range objs {
		parse, ok := statusStructifiers[obj.Type]
		if !ok {
			continue
		}

		rec, err := parse(obj.Fields)
		if err != nil {
			return nil, errors.Wrapf(err, "can't parse %s block", obj.Type)
		}

		switch v := rec.(type) {
		case *HostStatus:
			host := cfg.Host(v.HostName)
			if host == nil {
				return nil, errors.Errorf("status for unknown host %q", v.HostName)
			}

			host.UpdateState(v)
		case *ServiceStatus:
			svc := cfg.Service(v.HostName, v.ServiceDescription)
			if svc == nil {
				return nil, errors.Errorf("status for unknown service %q/%q",
					v.HostName, v.ServiceDescription)
			}

			svc.UpdateState(v)
		}
	}

	return &StatusSnapshot{ModTime: modTime, Report: NewReport(cfg)}, nil
}
