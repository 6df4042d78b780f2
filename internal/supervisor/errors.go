package supervisor

import "errors"

var (
	errEmptyCommand = errors.New("no command given to launch")
	errSpawnFailed  = errors.New("failed to spawn child process")
)
