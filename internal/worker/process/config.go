package process

type Config struct {
	// Command is the path or name of the binary to execute
	Command string `conf:"command"`

	// Args is the list of arguments to pass to the command
	Args []string `conf:"args"`

	// Cwd is the working directory in which
	// the binary should be executed
	Cwd string `conf:"cwd"`

	// Env is a map of environment variables added
	// to the environment of the supervisor
	Env map[string]string `conf:"env"`
}
