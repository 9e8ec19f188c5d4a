// Package config provides configuration management for the chat relay.
//
// Configuration is loaded from an optional YAML file with environment
// variable overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("chatrelay.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CHATRELAY_SECTION_FIELD:
//
//   - CHATRELAY_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CHATRELAY_UPSTREAM_URL overrides upstream.url
//   - CHATRELAY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The upstream credential itself is never part of the YAML defaults. It is
// read from upstream.api_key_env (DEEPSEEK_API_KEY by default) or from
// upstream.api_key_file.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Process Configuration
//
//	cfg, err := config.Load("chatrelay.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// elsewhere
//	cfg = config.GetConfig()
//
// For testing, prefer explicit Config instances built with NewDefault.
package config
