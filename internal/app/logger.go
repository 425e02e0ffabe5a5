package app

import (
	"strings"

	"github.com/permtrackhq/permtrack/pkg/logger"
)

// ConfigureLogging initialises the global logger from server settings,
// defaulting to info-level JSON output.
func ConfigureLogging(level, encoding string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, encoding)
}
