// Package config loads the service configuration.
//
// Values are resolved in increasing order of precedence:
//
//  1. Default()
//  2. a YAML file (NR_CONFIG_FILE, config.yaml or configs/config.yaml)
//  3. environment variables with the NR_ prefix
//
// Nested sections map to underscore separated names:
//
//	NR_SERVER_PORT=8080
//	NR_DRIVE_CREDENTIALS_FILE=/etc/noisereports/service-account.json
//	NR_DRIVE_PARENT_FOLDER_ID=1AbC...
//	NR_CACHE_REMOTE_TIMEOUT=2m
//	NR_ARCHIVE_DEFAULT_OPTIONS=original,overview
//
// For tests use Default(), which needs no environment or files.
package config
