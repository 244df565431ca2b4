// Package config loads warren-sync's repository and network configuration
// from YAML (§10.3), following the teacher's convention of a plain
// exported Config struct per component (see pkg/worker.Config,
// pkg/log.Config) rather than a framework like viper.
package config
