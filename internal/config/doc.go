// Package config provides configuration management for the license engine.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern LICENSING_<SECTION>_<FIELD>:
//
//	LICENSING_SERVER_PORT=8080
//	LICENSING_STORAGE_DRIVER=postgres
//	LICENSING_STORAGE_POSTGRES_DSN=postgres://...
//	LICENSING_LOCKING_DRIVER=redis
//	LICENSING_EVENTS_BROKERS=kafka-1:9092,kafka-2:9092
//	LICENSING_CERTIFICATES_SERIAL_PREFIX=PFX
//
// The config file is taken from LICENSING_CONFIG_FILE, or the first of
// config.yaml, configs/config.yaml and ../configs/config.yaml that exists.
//
// # Testing
//
// Use Default() to get a configuration with in-memory backends that needs no
// environment variables or external resources.
package config
