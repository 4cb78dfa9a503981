package config

import (
	"time"

	"licensebridge/pkg/contracts"
)

// Application constants
const (
	AppName    = "licensebridge"
	AppVersion = contracts.Version

	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "LICENSEBRIDGE"

	// ConfigFileEnv points Load at an explicit YAML file.
	ConfigFileEnv = "LICENSEBRIDGE_CONFIG"

	DefaultHost = "127.0.0.1"
	DefaultPort = 7421

	// Storage file names, resolved under the XDG data home
	DatabaseFileName = "app.db"
	FlagsFileName    = "local-storage.json"
	LogFileName      = "licensebridge.log"

	// Trial license length handed out by the backend
	DefaultTrialDays = 14

	// Bridge websocket settings
	DefaultBridgePath     = "/bridge"
	DefaultEventsPath     = "/events"
	DefaultReadLimit      = 1 << 20
	DefaultPingPeriod     = 30 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultWriteWait      = 10 * time.Second
	DefaultRequestTimeout = 15 * time.Second

	// Rate limiting per bridge connection
	DefaultBridgeRPS   = 50
	DefaultBridgeBurst = 20
)
