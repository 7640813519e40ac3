// Package config provides configuration loading for the forecast page.
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML file (FORECAST_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Default values (lowest priority)
//
// Environment variables follow the pattern FORECAST_<SECTION>_<FIELD>:
//
//	FORECAST_SERVER_PORT=8080
//	FORECAST_PIPELINE_ENDPOINT=https://example.execute-api.amazonaws.com/prod/forecast
//	FORECAST_PIPELINE_START_ACTION=senddata
//	FORECAST_PIPELINE_POLL_INTERVAL=5m
//	FORECAST_LOGGING_LEVEL=debug
//
// The loaded configuration is validated with struct tags before use.
package config
