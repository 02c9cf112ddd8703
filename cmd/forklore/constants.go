package main

// EnvUser names the environment variable holding the acting user.
const EnvUser = "FORKLORE_USER"

// Default limits for CLI commands.
const (
	DefaultSearchLimit = 10
	DefaultListLimit   = 50
)

// Valid import conflict strategies.
var validConflictStrategies = []string{"skip", "fail"}
