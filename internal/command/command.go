// Package command bundles everything a molniya binary needs at startup:
// parsed CLI flags, the loaded configuration and the logging factory.
package command

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/a3rd/molniya/internal"
	"github.com/a3rd/molniya/pkg/config"
	"github.com/a3rd/molniya/pkg/logging"
)

// Command is the startup bundle handed to main.
type Command struct {
	Flags  *config.Flags
	Config *config.Config
	Logs   *logging.Logging
}

// New parses CLI flags and the YAML config and initializes logging.
// Any failure here happens before logging exists and is fatal to stderr.
func New() *Command {
	flags, err := config.ParseFlags()
	if err != nil {
		fatal(err)
	}

	if flags.Version {
		fmt.Println("molniya version", internal.Version)
		os.Exit(0)
	}

	cfg, err := config.FromYAMLFile(flags.Config)
	if err != nil {
		fatal(err)
	}

	logs, err := logging.NewLogging(
		"molniya", cfg.Logging.Level, cfg.Logging.Output, cfg.Logging.File, cfg.Logging.Options)
	if err != nil {
		fatal(errors.Wrap(err, "can't configure logging"))
	}

	return &Command{
		Flags:  flags,
		Config: cfg,
		Logs:   logs,
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
