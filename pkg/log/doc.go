/*
Package log provides structured logging for ice using zerolog.

A single package-level zerolog.Logger is configured once at process start by
Init and shared by every component. Components derive child loggers that carry
a fixed field so registry, agent and client output can be filtered apart:

	┌──────────────────── LOGGING ─────────────────────────┐
	│  log.Init(Config{Level, JSONOutput, Output})          │
	│            │                                           │
	│            ▼                                           │
	│  Logger (global, thread-safe)                          │
	│     ├── WithComponent("api")      component=api        │
	│     ├── WithSessionID("5f2c…")    session_id=5f2c…     │
	│     └── WithInstanceID("9ab1…")   instance_id=9ab1…    │
	└───────────────────────────────────────────────────────┘

# Output

JSON output is intended for the registry daemon running under a supervisor;
the console writer (RFC3339 timestamps) is the default for the operator CLI and
the self-registration agent, which both log to stderr so that stdout stays
reserved for command results.

# Usage

	log.Init(log.Config{
		Level:      log.ParseLevel("debug"),
		JSONOutput: false,
		Output:     os.Stderr,
	})

	logger := log.WithComponent("api")
	logger.Info().Str("addr", addr).Msg("registry listening")

Before Init is called the global logger writes JSON to stderr at the zerolog
default level, so library code may log safely from tests.
*/
package log
