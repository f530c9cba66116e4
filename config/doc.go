// Package config provides configuration loading and validation for switchboard.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (SWITCHBOARD_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Environment Variables
//
// Keys map to variables by upper-casing and replacing dots with
// underscores:
//
//	server.port        -> SWITCHBOARD_SERVER_PORT
//	access.mode        -> SWITCHBOARD_ACCESS_MODE
//	access.deny        -> SWITCHBOARD_ACCESS_DENY (comma separated)
//	auth.keys.file     -> SWITCHBOARD_AUTH_KEYS_FILE
//
// # Example File
//
//	server:
//	  host: 0.0.0.0
//	  port: 8000
//	  listener: native
//	content:
//	  base_directory: ./public
//	  routes:
//	    - path: /assets/
//	      directory: true
//	      public: true
//	access:
//	  mode: default-permit
//	  deny: [10.0.0.0/8]
//	auth:
//	  mode: basic
//	  keys:
//	    file: keys.yaml
//	metrics:
//	  enabled: true
package config
