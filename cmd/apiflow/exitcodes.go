package main

// Exit codes
const (
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (bad file, unknown driver)
	ExitDataError   = 3 // Data error (malformed flow file, validation rejected)
	ExitNotFound    = 4 // Flow not found
	ExitBackend     = 5 // Remote backend unreachable or returned an error
)
