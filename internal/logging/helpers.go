package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LogLevelFromString converts a config string into a LogLevel.
func LogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// InitializeFromConfig builds and installs the global logger from a LogConfig.
func InitializeFromConfig(instanceName string, logConfig LogConfig) (*Logger, error) {
	if logConfig.LogDir != "" {
		if err := os.MkdirAll(logConfig.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	logFile := logConfig.LogFile
	if logFile == "" && logConfig.EnableFile {
		name := fmt.Sprintf("%s.log", instanceName)
		if logConfig.LogDir != "" {
			logFile = filepath.Join(logConfig.LogDir, name)
		} else {
			logFile = name
		}
	}

	logger := NewLogger(Config{
		Level:         LogLevelFromString(logConfig.Level),
		LogFile:       logFile,
		EnableConsole: logConfig.EnableConsole,
		EnableFile:    logConfig.EnableFile,
	})
	SetGlobalLogger(logger)

	return logger, nil
}

// LogConfig mirrors the logging section of the host's YAML configuration.
type LogConfig struct {
	Level         string `yaml:"level"`
	EnableConsole bool   `yaml:"enable_console"`
	EnableFile    bool   `yaml:"enable_file"`
	LogFile       string `yaml:"log_file"`
	LogDir        string `yaml:"log_dir"`
}

// Action names used when logging filter diagnostics.
const (
	ActionAdd    = "add"
	ActionCheck  = "check"
	ActionRemove = "remove"
	ActionInit   = "init"
	ActionDump   = "dump"
	ActionLoad   = "load"
)
