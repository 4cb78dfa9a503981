// Package config loads the licensebridge configuration.
//
// Values are resolved in this order, later sources winning:
//
//  1. Default() values
//  2. An optional YAML file (LICENSEBRIDGE_CONFIG, ./config.yaml or ./configs/config.yaml)
//  3. Environment variables prefixed with LICENSEBRIDGE_
//
// Environment variables follow the nested struct names, for example:
//
//	LICENSEBRIDGE_SERVER_PORT=7421
//	LICENSEBRIDGE_BRIDGE_URL=ws://127.0.0.1:7421/bridge
//	LICENSEBRIDGE_STORAGE_DATABASE_PATH=/var/lib/licensebridge/app.db
//	LICENSEBRIDGE_LOGGING_LEVEL=debug
//
// Storage paths left empty are placed under the XDG data home
// ($XDG_DATA_HOME/licensebridge).
package config
