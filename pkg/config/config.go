package config

import (
	"os"
	"time"

	"github.com/a3rd/molniya/pkg/logging"
	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// DefaultConfigPath specifies the default location of the gateway's config.yml for package installations.
const DefaultConfigPath = "/etc/molniya/config.yml"

// Config defines the gateway configuration read once at startup.
type Config struct {
	Nagios  Nagios         `yaml:"nagios"`
	Chat    Chat           `yaml:"chat"`
	HTTP    HTTP           `yaml:"http"`
	SMTP    SMTP           `yaml:"smtp"`
	Logging logging.Config `yaml:"logging"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if err := c.Nagios.Validate(); err != nil {
		return err
	}
	if err := c.Chat.Validate(); err != nil {
		return err
	}
	if err := c.SMTP.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	return nil
}

// Nagios locates the monitoring system's on-disk state.
type Nagios struct {
	// VarDir is the monitoring system's state directory.
	VarDir string `yaml:"var-dir" default:"/var/nagios"`
	// ObjectsFile overrides the configuration snapshot path, normally <var-dir>/objects.cache.
	ObjectsFile string `yaml:"objects-file"`
	// StatusFile overrides the status snapshot path, normally <var-dir>/status.dat.
	StatusFile string `yaml:"status-file"`
	// CommandFile overrides the external command FIFO path, normally <var-dir>/rw/nagios.cmd.
	CommandFile string `yaml:"command-file"`
	// BaseURI is the monitoring web frontend, used for links in detail views.
	BaseURI string `yaml:"base-uri"`
	// StatusWait bounds how long a status reload may lag behind a configuration reload.
	StatusWait time.Duration `yaml:"status-wait" default:"1m"`
}

// Validate checks constraints in the supplied Nagios configuration,
// deriving the file paths from VarDir where not explicitly set.
func (n *Nagios) Validate() error {
	if n.VarDir == "" {
		return errors.New("nagios var-dir must be configured")
	}
	if n.StatusWait <= 0 {
		return errors.New("status-wait must be positive")
	}

	if n.ObjectsFile == "" {
		n.ObjectsFile = n.VarDir + "/objects.cache"
	}
	if n.StatusFile == "" {
		n.StatusFile = n.VarDir + "/status.dat"
	}
	if n.CommandFile == "" {
		n.CommandFile = n.VarDir + "/rw/nagios.cmd"
	}

	return nil
}

// Chat configures the chat side of the gateway.
type Chat struct {
	// Listen is the address the line-oriented chat transport binds to.
	Listen string `yaml:"listen" default:"localhost:5299"`
	// ContactField names the monitoring contact property holding a contact's chat address.
	ContactField string `yaml:"contact-field" default:"xmpp"`
	// CheckTimeout bounds how long a "check" command waits for a fresh result before giving up.
	CheckTimeout time.Duration `yaml:"check-timeout" default:"1m"`
}

// Validate checks constraints in the supplied Chat configuration and returns an error if they are violated.
func (c *Chat) Validate() error {
	if c.ContactField == "" {
		return errors.New("chat contact-field must be configured")
	}
	if c.CheckTimeout <= 0 {
		return errors.New("check-timeout must be positive")
	}

	return nil
}

// HTTP configures the notification trigger endpoint.
type HTTP struct {
	Listen string `yaml:"listen" default:"localhost:8612"`
}

// SMTP configures outbound mail submission.
type SMTP struct {
	Relay string `yaml:"relay" default:"localhost:25"`
	From  string `yaml:"from"`
}

// Validate checks constraints in the supplied SMTP configuration and returns an error if they are violated.
func (s *SMTP) Validate() error {
	if s.Relay == "" {
		return errors.New("smtp relay must be configured")
	}

	return nil
}

// FromYAMLFile returns a new Config value created from the given YAML config file.
func FromYAMLFile(name string) (*Config, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "can't open YAML file "+name)
	}
	defer f.Close()

	c := &Config{}
	d := yaml.NewDecoder(f, yaml.DisallowUnknownField())

	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "can't set config defaults")
	}

	if err := d.Decode(c); err != nil {
		return nil, errors.Wrap(err, "can't parse YAML file "+name)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}

// Flags defines CLI flags.
type Flags struct {
	// Version decides whether to just print the version and exit.
	Version bool `long:"version" description:"print version and exit"`
	// Config is the path to the config file.
	Config string `short:"c" long:"config" description:"path to config file" default:"/etc/molniya/config.yml"`
}

// ParseFlags parses CLI flags and returns a Flags value created from them.
func ParseFlags() (*Flags, error) {
	f := &Flags{}
	parser := flags.NewParser(f, flags.Default)

	if _, err := parser.Parse(); err != nil {
		return nil, errors.Wrap(err, "can't parse CLI flags")
	}

	return f, nil
}
