// Package config loads the service configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default()
//	2. A YAML file: $LRS_CONFIG_FILE, ./config.yaml or ./configs/config.yaml
//	3. Environment variables prefixed with LRS_
//
// # Environment Variables
//
// Variable names join the section and field tags:
//
//	LRS_SERVER_PORT=8080
//	LRS_LOGGING_LEVEL=debug
//	LRS_PIPELINE_SEED=7
//	LRS_KAFKA_ENABLED=true
//	LRS_KAFKA_BROKERS=broker-1:9092,broker-2:9092
//
// The merged configuration is validated with struct tags before use.
package config
