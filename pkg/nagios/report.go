package nagios

// Report buckets the current problems of a snapshot. Hosts in a problem
// state are bucketed as hosts; their services are not repeated. Problem
// services are only reported for hosts that are themselves up. Buckets are
// name-sorted for stable output.
type Report struct {
	HostsBy    map[State][]*Host
	ServicesBy map[State][]*Service
}

// NewReport classifies the snapshot's hosts and services by their current
// (most recent check) state.
func NewReport(cfg *ConfigSnapshot) *Report {
	r := &Report{
		HostsBy:    map[State][]*Host{},
		ServicesBy: map[State][]*Service{},
	}

	for _, host := range cfg.Hosts {
		state := host.CurrentState()
		if state != StateOK && state != StatePending {
			r.HostsBy[state] = append(r.HostsBy[state], host)
			continue
		}

		for _, svc := range host.Services {
			if s := svc.CurrentState(); s != StateOK && s != StatePending {
				r.ServicesBy[s] = append(r.ServicesBy[s], svc)
			}
		}
	}

	for _, hosts := range r.HostsBy {
		SortHosts(hosts)
	}
	for _, svcs := range r.ServicesBy {
		SortServices(svcs)
	}

	return r
}

// Problems counts the bucketed entities.
func (r *Report) Problems() int {
	n := 0
	for _, hosts := range r.HostsBy {
		n += len(hosts)
	}
	for _, svcs := range r.ServicesBy {
		n += len(svcs)
	}

	return n
}

// HostStates returns the fixed problem-state order for host buckets.
func (r *Report) HostStates() []State { return hostProblemStates }

// ServiceStates returns the fixed problem-state order for service buckets.
func (r *Report) ServiceStates() []State { return serviceProblemStates }
