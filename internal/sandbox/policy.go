package sandbox

import "time"

// Policy defines resource limits for the docker driver.
type Policy struct {
	MaxMemory  string        // Docker memory limit (e.g. "256m")
	MaxTimeout time.Duration // Passed to docker as --stop-timeout
	Network    bool          // Whether network access is allowed
	Images     []string      // Allowed Docker images
}

// DefaultPolicy returns safe defaults covering the built-in interpreters.
func DefaultPolicy() Policy {
	return Policy{
		MaxMemory:  "256m",
		MaxTimeout: 30 * time.Second,
		Network:    false,
		Images: []string{
			"perl:5.40-slim",
			"python:3.12-slim",
			"ruby:3.3-slim",
			"bash:5.2",
			"nickblah/lua:5.4",
			"node:22-slim",
			"golang:1.23-alpine",
		},
	}
}

// IsImageAllowed checks if an image is on the allowlist.
func (p Policy) IsImageAllowed(image string) bool {
	for _, allowed := range p.Images {
		if allowed == image {
			return true
		}
	}
	return false
}
