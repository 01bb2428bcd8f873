package orchestrator

import "errors"

var ErrShutdown = errors.New("orchestrator is shut down")
