package main

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/scriptnest/scriptnest/scriptdb"
	"github.com/scriptnest/scriptnest/scripts"
)

// backendLog is the logging backend used to create all subsystem loggers.
var backendLog = btclog.NewBackend(os.Stdout)

// Loggers per subsystem. The main package logger and the loggers handed to
// each library package below share the backend, so a single --debuglevel
// setting covers all of them.
var (
	log     = backendLog.Logger("MAIN")
	scrpLog = backendLog.Logger("SCRP")
	sdbLog  = backendLog.Logger("SCDB")
)

func init() {
	scripts.UseLogger(scrpLog)
	scriptdb.UseLogger(sdbLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"MAIN": log,
	"SCRP": scrpLog,
	"SCDB": sdbLog,
}

// validLogLevel returns whether the logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}

// setLogLevels sets the log level for all subsystem loggers.
func setLogLevels(logLevel string) {
	level, _ := btclog.LevelFromString(logLevel)
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
