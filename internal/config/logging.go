package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetupLogging applies the configured level and formatter to the standard logger.
func SetupLogging(cfg LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", cfg.Format)
	}

	return nil
}
