package publisher

import "github.com/rumbo/drivermatch/pkg/logger"

// Option applies a configuration option to the KafkaPublisher.
type Option func(*KafkaPublisher)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *KafkaPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}
