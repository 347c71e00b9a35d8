package host

import "os/exec"

// execCommandOutput runs a command and returns its stdout. A package
// variable so tests can intercept every external invocation.
var execCommandOutput = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}
