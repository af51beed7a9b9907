// Package config handles configuration loading for timecard.
//
// # Overview
//
// Configuration is loaded from a YAML file, or a TOML file when the path ends
// in .toml, with environment variable expansion. Missing values fall back to
// defaults and the result is validated.
//
// # Configuration File
//
// Location (first match wins):
//
//  1. --config flag
//  2. TIMECARD_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/timecard/config.yaml (~/.config/timecard/config.yaml)
//
// When no file exists at the default location, Default() is used.
//
// # Environment Variables
//
// Values can reference the environment:
//
//	auth:
//	  session_secret: "${TIMECARD_SESSION_SECRET}"
//
// Independently of the file, these override their settings:
//
//   - TIMECARD_SESSION_SECRET: auth.session_secret
//   - TIMECARD_DB_PATH: database.path
//   - TIMECARD_ENV=production: server.production
//
// # Example
//
//	server:
//	  http_addr: ":8080"
//	  production: true
//
//	database:
//	  path: "/var/lib/timecard/timecard.db"
//
//	auth:
//	  session_secret: "${TIMECARD_SESSION_SECRET}"
//	  session_ttl: "24h"
//	  token_ttl: "1h"
//	  kdf_concurrency: 4
//
//	sessions:
//	  backend: "redis"          # or "memory"
//	  sweep_interval: "10m"     # memory backend only, "0" disables
//	  redis:
//	    addr: "localhost:6379"
//	    prefix: "timecard:session:"
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text or json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Outside production an empty session secret is replaced by a random one
// for the life of the process, so bearer tokens do not survive a restart.
package config
