package logging

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

// Config defines Logger configuration.
type Config struct {
	// zapcore.Level at 0 is for info level.
	Level  zapcore.Level `yaml:"level" default:"0"`
	Output string        `yaml:"output"`

	File FileRotation `yaml:"file"`

	Options `yaml:"options"`
}

// FileRotation configures the rotated log file used by the "file" output.
type FileRotation struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max-size-mb" default:"10"`
	MaxBackups int    `yaml:"max-backups" default:"5"`
	MaxAgeDays int    `yaml:"max-age-days" default:"14"`
}

// Validate checks constraints in the supplied Config configuration and returns an error if they are violated.
// Also configures the log output if it is not configured:
// systemd-journald is used when running under systemd, otherwise stderr.
func (l *Config) Validate() error {
	if l.Output == "" {
		if _, ok := os.LookupEnv("NOTIFY_SOCKET"); ok {
			// NOTIFY_SOCKET is set by systemd for Type=notify supervised services.
			l.Output = JOURNAL
		} else {
			l.Output = CONSOLE
		}
	}

	if l.Output == FILE && l.File.Path == "" {
		return errors.New("log file path must be configured for the file output")
	}

	// To be on the safe side, always call AssertOutput.
	return AssertOutput(l.Output)
}
