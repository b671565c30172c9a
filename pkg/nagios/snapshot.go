package nagios

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ConfigSnapshot is the immutable-once-built record set of one
// configuration reload, tagged with the source modification time it was
// built from. Host and Service identity objects live here and are mutated
// in place by status reloads until the next configuration reload replaces
// them wholesale.
type ConfigSnapshot struct {
	ModTime time.Time

	Hosts         map[string]*Host
	Contacts      map[string]*Contact
	Commands      map[string]*Command
	TimePeriods   map[string]*TimePeriod
	HostGroups    map[string]*Group
	ServiceGroups map[string]*Group
	ContactGroups map[string]*Group
	Escalations   []*ServiceEscalation
}

// BuildConfigSnapshot assembles a snapshot from parsed configuration
// blocks. Every service must reference a host defined in the same record
// set and every group member must resolve within it; violations abort the
// build.
func BuildConfigSnapshot(objs []RawObject, modTime time.Time) (*ConfigSnapshot, error) {
	snapshot := &ConfigSnapshot{
		ModTime:       modTime,
		Hosts:         map[string]*Host{},
		Contacts:      map[string]*Contact{},
		Commands:      map[string]*Command{},
		TimePeriods:   map[string]*TimePeriod{},
		HostGroups:    map[string]*Group{},
		ServiceGroups: map[string]*Group{},
		ContactGroups: map[string]*Group{},
	}

	// Services are children of hosts and resolve in a second pass.
	var services []map[string]string

	for _, obj := range objs {
		switch obj.Type {
		case tagHost:
			name, err := requiredField(obj, "host_name")
			if err != nil {
				return nil, err
			}
			snapshot.Hosts[name] = &Host{Name: name, Props: obj.Fields, Services: map[string]*Service{}}
		case tagService:
			services = append(services, obj.Fields)
		case tagContact:
			name, err := requiredField(obj, "contact_name")
			if err != nil {
				return nil, err
			}
			snapshot.Contacts[name] = &Contact{Name: name, Props: obj.Fields}
		case tagCommand:
			name, err := requiredField(obj, "command_name")
			if err != nil {
				return nil, err
			}
			snapshot.Commands[name] = &Command{Name: name, Props: obj.Fields}
		case tagTimePeriod:
			name, err := requiredField(obj, "timeperiod_name")
			if err != nil {
				return nil, err
			}
			snapshot.TimePeriods[name] = &TimePeriod{Name: name, Props: obj.Fields}
		case tagHostGroup:
			name, err := requiredField(obj, "hostgroup_name")
			if err != nil {
				return nil, err
			}
			snapshot.HostGroups[name] = &Group{Kind: HostGroupKind, Name: name, Props: obj.Fields, Members: memberList(obj.Fields)}
		case tagServiceGroup:
			name, err := requiredField(obj, "servicegroup_name")
			if err != nil {
				return nil, err
			}
			snapshot.ServiceGroups[name] = &Group{Kind: ServiceGroupKind, Name: name, Props: obj.Fields, Members: memberList(obj.Fields)}
		case tagContactGroup:
			name, err := requiredField(obj, "contactgroup_name")
			if err != nil {
				return nil, err
			}
			snapshot.ContactGroups[name] = &Group{Kind: ContactGroupKind, Name: name, Props: obj.Fields, Members: memberList(obj.Fields)}
		case tagServiceEscalation:
			snapshot.Escalations = append(snapshot.Escalations, &ServiceEscalation{Props: obj.Fields})
		default:
			// Unrecognized object types (hostescalation, hostextinfo, ...) are skipped.
		}
	}

	for _, fields := range services {
		hostName := fields["host_name"]
		host := snapshot.Hosts[hostName]
		if host == nil {
			return nil, errors.Errorf("service %q references unknown host %q",
				fields["service_description"], hostName)
		}

		desc := fields["service_description"]
		if desc == "" {
			return nil, errors.Errorf("service of host %q lacks a description", hostName)
		}

		host.Services[desc] = &Service{Host: host, Description: desc, Props: fields}
	}

	if err := snapshot.resolveGroups(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func requiredField(obj RawObject, key string) (string, error) {
	v := obj.Fields[key]
	if v == "" {
		return "", errors.Errorf("%s block lacks %s", obj.Type, key)
	}

	return v, nil
}

func memberList(fields map[string]string) []string {
	raw := fields["members"]
	if raw == "" {
		return nil
	}

	members := strings.Split(raw, ",")
	for i, m := range members {
		members[i] = strings.TrimSpace(m)
	}

	return members
}

// resolveGroups verifies that group membership references resolve within
// this snapshot. Service group members alternate host,description pairs.
func (c *ConfigSnapshot) resolveGroups() error {
	for _, g := range c.HostGroups {
		for _, m := range g.Members {
			if c.Hosts[m] == nil {
				return errors.Errorf("hostgroup %q references unknown host %q", g.Name, m)
			}
		}
	}

	for _, g := range c.ContactGroups {
		for _, m := range g.Members {
			if c.Contacts[m] == nil {
				return errors.Errorf("contactgroup %q references unknown contact %q", g.Name, m)
			}
		}
	}

	for _, g := range c.ServiceGroups {
		if len(g.Members)%2 != 0 {
			return errors.Errorf("servicegroup %q has an odd member list", g.Name)
		}

		for i := 0; i < len(g.Members); i += 2 {
			if c.Service(g.Members[i], g.Members[i+1]) == nil {
				return errors.Errorf("servicegroup %q references unknown service %q/%q",
					g.Name, g.Members[i], g.Members[i+1])
			}
		}
	}

	return nil
}

// Host returns the named host, or nil.
func (c *ConfigSnapshot) Host(name string) *Host {
	return c.Hosts[name]
}

// Service returns the named service of the named host, or nil.
func (c *ConfigSnapshot) Service(host, description string) *Service {
	h := c.Hosts[host]
	if h == nil {
		return nil
	}

	return h.Services[description]
}

// ContactByName returns the named monitoring contact, or nil.
func (c *ConfigSnapshot) ContactByName(name string) *Contact {
	return c.Contacts[name]
}

// ContactByProperty returns the first contact (by name order, for
// determinism) whose property field equals value, or nil.
func (c *ConfigSnapshot) ContactByProperty(field, value string) *Contact {
	names := make([]string, 0, len(c.Contacts))
	for name := range c.Contacts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if contact := c.Contacts[name]; contact.Prop(field) == value {
			return contact
		}
	}

	return nil
}

// ResolveServiceName resolves input against host's service descriptions by
// case-insensitive prefix match; among several matches the longest
// description wins, so "diskspace" never resolves to a service named
// "disk". It returns the service and the unconsumed remainder of input.
func (c *ConfigSnapshot) ResolveServiceName(host *Host, input string) (*Service, string, error) {
	lower := strings.ToLower(input)

	var best *Service
	bestLen := -1
	for desc, svc := range host.Services {
		if len(desc) > bestLen && strings.HasPrefix(lower, strings.ToLower(desc)) {
			best = svc
			bestLen = len(desc)
		}
	}

	if best == nil {
		return nil, "", errors.Errorf("unknown service starting with %q for host %s", input, host.Name)
	}

	return best, strings.TrimSpace(input[bestLen:]), nil
}

// SortHosts orders hosts by name.
func SortHosts(hosts []*Host) {
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
}

// SortServices orders services by host name, then description.
func SortServices(svcs []*Service) {
	sort.Slice(svcs, func(i, j int) bool {
		if svcs[i].Host.Name != svcs[j].Host.Name {
			return svcs[i].Host.Name < svcs[j].Host.Name
		}

		return svcs[i].Description < svcs[j].Description
	})
}
