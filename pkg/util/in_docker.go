// Package util contains helpers that don't belong to any other package
package util

import "os"

// dockerEnvPath is overridden by tests
var dockerEnvPath = "/.dockerenv"

func IsRunningInDocker() bool {
	if _, err := os.Stat(dockerEnvPath); err == nil {
		return true
	}

	return false
}
