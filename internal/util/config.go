package util

import "github.com/spf13/viper"

// Configuration keys shared by the CLI and the store
const (
	KeyDBPath       = "db"
	KeyAutoRecreate = "auto-recreate"
	KeyAutoCleanup  = "auto-cleanup"
	KeyEventsDir    = "events-dir"
	KeyWebHost      = "web-host"
	KeyWebPort      = "web-port"
)

// GetAutoRecreate returns whether structural mismatches are rebuilt
// automatically. Off unless explicitly enabled (--auto-recreate or
// DB_AUTO_RECREATE=true).
func GetAutoRecreate() bool {
	return viper.GetBool(KeyAutoRecreate)
}

// GetAutoCleanup returns whether live tables missing from the declared schema
// are dropped. Off unless explicitly enabled.
func GetAutoCleanup() bool {
	return viper.GetBool(KeyAutoCleanup)
}

// GetDBPath returns the configured database file path
func GetDBPath() string {
	if p := viper.GetString(KeyDBPath); p != "" {
		return p
	}
	return "./data/gym.db"
}

// GetEventsDir returns the directory for JSONL schema event logs, or "" when
// event logging is off
func GetEventsDir() string {
	return viper.GetString(KeyEventsDir)
}

// GetWebHost returns the dashboard listen host
func GetWebHost() string {
	if h := viper.GetString(KeyWebHost); h != "" {
		return h
	}
	return "localhost"
}

// GetWebPort returns the dashboard listen port
func GetWebPort() int {
	if p := viper.GetInt(KeyWebPort); p > 0 {
		return p
	}
	return 3000
}
