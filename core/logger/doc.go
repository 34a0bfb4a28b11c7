// Package logger provides a structured logging facility based on Zap.
//
// Every component of the sync core receives a *zap.Logger through its
// constructor; there is no package-level logger. Component() names child
// loggers and substitutes a no-op logger when none is supplied.
//
// # Context Awareness
//
// The WithRayID helper extracts the RayID from a Fiber context and attaches it to the
// log entry, so all logs of one bridge request can be correlated.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	scanner := device.NewScanner(fs, cache, logger.Component(log, "scanner"))
package logger
