package api

import "github.com/rumbo/drivermatch/pkg/logger"

const (
	defaultRunsLimit    = 20
	defaultMaxRunsLimit = 100
	defaultMaxBodyBytes = 32 << 20
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxRunsLimit caps the limit accepted by GET /v1/runs.
func WithMaxRunsLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRunsLimit = n
		}
	}
}

// WithMaxBodyBytes caps the size of a POST /v1/runs body.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
