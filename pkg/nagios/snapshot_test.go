package nagios

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testObjects = `
define host {
	host_name	web01
	alias	Web frontend
	}
define host {
	host_name	db01
	}
define service {
	host_name	web01
	service_description	disk
	}
define service {
	host_name	web01
	service_description	diskspace
	}
define service {
	host_name	db01
	service_description	mysql
	}
define contact {
	contact_name	sergey
	email	sergey@example.net
	xmpp	sergey@chat.example.net
	}
define contact {
	contact_name	anna
	email	anna@example.net
	}
define hostgroup {
	hostgroup_name	all
	members	web01,db01
	}
define contactgroup {
	contactgroup_name	admins
	members	sergey, anna
	}
define servicegroup {
	servicegroup_name	storage
	members	web01,disk,web01,diskspace
	}
define timeperiod {
	timeperiod_name	24x7
	}
define command {
	command_name	check-host-alive
	}
`

func mustSnapshot(t *testing.T) *ConfigSnapshot {
	t.Helper()

	objs, err := ParseObjects(strings.NewReader(testObjects))
	require.NoError(t, err)

	snapshot, err := BuildConfigSnapshot(objs, time.Unix(1330000000, 0))
	require.NoError(t, err)

	return snapshot
}

func TestBuildConfigSnapshot(t *testing.T) {
	snapshot := mustSnapshot(t)

	require.Len(t, snapshot.Hosts, 2)
	require.Len(t, snapshot.Contacts, 2)
	require.Len(t, snapshot.Host("web01").Services, 2)
	require.Len(t, snapshot.Host("db01").Services, 1)

	svc := snapshot.Service("web01", "disk")
	require.NotNil(t, svc)
	require.Equal(t, "web01/disk", svc.Ident())
	require.Same(t, snapshot.Host("web01"), svc.Host)

	require.Equal(t, []string{"sergey", "anna"}, snapshot.ContactGroups["admins"].Members)
}

func TestBuildConfigSnapshotErrors(t *testing.T) {
	subtests := []struct {
		name  string
		input string
	}{
		{"service-without-host", "define service {\n\thost_name\tghost\n\tservice_description\tdisk\n\t}\n"},
		{"host-without-name", "define host {\n\talias\tnameless\n\t}\n"},
		{
			"hostgroup-bad-member",
			"define host {\n\thost_name\tweb01\n\t}\ndefine hostgroup {\n\thostgroup_name\tg\n\tmembers\tweb01,ghost\n\t}\n",
		},
		{
			"servicegroup-odd-members",
			"define host {\n\thost_name\tweb01\n\t}\ndefine servicegroup {\n\tservicegroup_name\tg\n\tmembers\tweb01\n\t}\n",
		},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			objs, err := ParseObjects(strings.NewReader(st.input))
			require.NoError(t, err)

			_, err = BuildConfigSnapshot(objs, time.Now())
			require.Error(t, err)
		})
	}
}

func TestContactByProperty(t *testing.T) {
	snapshot := mustSnapshot(t)

	require.Equal(t, "sergey", snapshot.ContactByProperty("xmpp", "sergey@chat.example.net").Name)
	require.Equal(t, "anna", snapshot.ContactByProperty("email", "anna@example.net").Name)
	require.Nil(t, snapshot.ContactByProperty("xmpp", "nobody@chat.example.net"))
}

func TestResolveServiceName(t *testing.T) {
	snapshot := mustSnapshot(t)
	web := snapshot.Host("web01")

	subtests := []struct {
		name      string
		input     string
		service   string
		remainder string
		error     bool
	}{
		{name: "exact", input: "disk", service: "disk"},
		{name: "longest-wins", input: "diskspace", service: "diskspace"},
		{name: "case-insensitive", input: "DiskSpace", service: "diskspace"},
		{name: "with-remainder", input: "disk is flaky again", service: "disk", remainder: "is flaky again"},
		{name: "unknown", input: "swap", error: true},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			svc, rest, err := snapshot.ResolveServiceName(web, st.input)
			if st.error {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, st.service, svc.Description)
			require.Equal(t, st.remainder, rest)
		})
	}
}
