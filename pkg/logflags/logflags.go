// Package logflags configures per-subsystem loggers, mirroring the
// teacher's convention of one independently-enabled logrus.Entry per
// architectural layer rather than a single global logger.
package logflags

import "github.com/sirupsen/logrus"

var (
	dmWire    = false
	transport = false
	engine    = false
	rsp       = false
)

// Setup enables or disables each subsystem's logging, typically driven by
// config or CLI flags at startup.
func Setup(dmWireOn, transportOn, engineOn, rspOn bool) {
	dmWire = dmWireOn
	transport = transportOn
	engine = engineOn
	rsp = rspOn
}

func makeLogger(enabled bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !enabled {
		logger.Logger.Level = logrus.WarnLevel
	}
	return logger
}

// DMLogger returns the logger for pkg/dm register-level access.
func DMLogger() *logrus.Entry {
	return makeLogger(dmWire, logrus.Fields{"layer": "dm"})
}

// TransportLogger returns the logger for pkg/transport wire traffic.
func TransportLogger() *logrus.Entry {
	return makeLogger(transport, logrus.Fields{"layer": "transport"})
}

// EngineLogger returns the logger for pkg/engine warp-control operations.
func EngineLogger() *logrus.Entry {
	return makeLogger(engine, logrus.Fields{"layer": "engine"})
}

// RSPLogger returns the logger for pkg/rsp packet/command traffic.
func RSPLogger() *logrus.Entry {
	return makeLogger(rsp, logrus.Fields{"layer": "rsp"})
}
