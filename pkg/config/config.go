// Package config loads vxdbg's settings, adapted from the teacher's
// pkg/config YAML-backed configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds every setting vxdbg needs beyond its CLI flags.
type Config struct {
	// TransportAddr is the host:port of the on-target debug transport.
	TransportAddr string `yaml:"transport-addr"`
	// GDBPort is the TCP port the RSP stub listens on.
	GDBPort int `yaml:"gdb-port"`
	// PollRetries is the default number of attempts dm.PollField makes.
	PollRetries int `yaml:"poll-retries"`
	// PollDelayMS is the default delay, in milliseconds, between poll attempts.
	PollDelayMS int `yaml:"poll-delay-ms"`
	// WakeDMRetries bounds the dmactive wake loop in engine.Initialize.
	WakeDMRetries int `yaml:"wake-dm-retries"`
	// TransportTimeoutMS bounds a single transport read.
	TransportTimeoutMS int `yaml:"transport-timeout-ms"`

	// LogDMWire enables pkg/dm register-access logging.
	LogDMWire bool `yaml:"log-dm-wire"`
	// LogTransport enables pkg/transport wire logging.
	LogTransport bool `yaml:"log-transport"`
	// LogEngine enables pkg/engine operation logging.
	LogEngine bool `yaml:"log-engine"`
	// LogRSP enables pkg/rsp packet logging.
	LogRSP bool `yaml:"log-rsp"`
}

// Default returns the configuration used when no file or flag overrides a
// setting.
func Default() Config {
	return Config{
		TransportAddr:       "127.0.0.1:5555",
		GDBPort:             3333,
		PollRetries:         10,
		PollDelayMS:         100,
		WakeDMRetries:       5,
		TransportTimeoutMS:  1000,
	}
}

// Load reads a YAML config file at path, overlaying it onto Default(). A
// missing file is not an error; it simply yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
