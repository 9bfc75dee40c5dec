package daemon

import "errors"

// ErrNoListeners indicates Serve was called with nothing to serve.
var ErrNoListeners = errors.New("daemon: no listeners")
