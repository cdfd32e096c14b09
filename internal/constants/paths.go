package constants

// Log file names and rotation settings.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.berth/logs/berth.log
	CLILogFileName = "berth.log"

	// LogMaxSizeMB is the size in megabytes at which the CLI log rotates.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups = 3

	// LogMaxAgeDays is how long rotated log files are kept.
	LogMaxAgeDays = 28

	// LogCompress enables gzip compression of rotated log files.
	LogCompress = true
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global berth configuration file.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the project-local configuration directory.
	ProjectConfigDir = ".berth"

	// EnvPrefix is the prefix for environment variable overrides (BERTH_GIT_TIMEOUT, ...).
	EnvPrefix = "BERTH"

	// EnvHome overrides the berth home directory.
	EnvHome = "BERTH_HOME"
)

// PrimaryMarker labels the shared checkout in workspace listings.
const PrimaryMarker = "(primary)"
