package app

// Command names an application start mode.
type Command string

const (
	// CommandServe starts the API server.
	CommandServe Command = "serve"
	// CommandWorker starts the self-scheduled pipeline worker.
	CommandWorker Command = "worker"
	// CommandMigrate applies database migrations and exits.
	CommandMigrate Command = "migrate"
	// CommandHealthcheck probes the local health endpoint and exits.
	// Used as the Docker healthcheck in distroless images.
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand reads the subcommand from the argument list. An empty or
// unknown argument falls back to CommandServe.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
