package app

// Command is the process run mode.
type Command string

const (
	// CommandServe starts the API server.
	CommandServe Command = "serve"
	// CommandWorker starts the refresh-token sweep loop.
	CommandWorker Command = "worker"
	// CommandMigrate applies database migrations and exits.
	CommandMigrate Command = "migrate"
	// CommandHealthcheck probes the local /health endpoint.
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand reads the subcommand from args.
// Empty or unknown input yields CommandServe.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
