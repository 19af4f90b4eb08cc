// Package config holds the settings of the dbops command: the database to
// open, and the retry, bulkhead, cache and telemetry layers to build around
// it. Settings are decoded from viper (flags, DBOPS_* environment, optional
// YAML file) and converted into the option structs of the layer packages.
package config
