// Package logging provides the logrus loggers used throughout madbus.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Module names, attached to every entry as the "module" field.
const (
	ServiceModule   = "service"
	DirectoryModule = "directory"
	TelegramModule  = "telegram"
	CatalogModule   = "catalog"
	CLIModule       = "cli"
)

var root = logrus.New()

// Setup configures the shared logger. Level is a logrus level name
// ("debug", "info", ...), format is "text" or "json".
func Setup(level string, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	root.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		root.SetFormatter(&logrus.JSONFormatter{})
	} else {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if out == nil {
		out = os.Stderr
	}
	root.SetOutput(out)

	return nil
}

// GetLogger returns an entry tagged with the given module.
func GetLogger(module string) *logrus.Entry {
	return root.WithField("module", module)
}
