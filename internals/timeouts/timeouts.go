package timeouts

import "time"

const (
	// OpenLibrary bounds opening and migrating the wallet database.
	OpenLibrary = 10 * time.Second
	// Command bounds synchronous library calls made from the CLI.
	Command = 30 * time.Second
	// ServerShutdown is how long the inspector gets to drain.
	ServerShutdown = 2 * time.Second
	// ServerRead bounds inspector request headers.
	ServerRead = 5 * time.Second
	// Notice is how long a transient notice stays on screen.
	Notice = 3 * time.Second
)
