package outguard

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/outguard/outguard/breaker"
)

// orderedDecorator pairs a decorator with its chain position.
type orderedDecorator struct {
	order int
	d     Decorator
}

// config holds the internal configuration assembled via functional options.
type config struct {
	log        *zap.Logger
	defaults   *breaker.Config
	source     breaker.ConfigSource
	observers  []breaker.Observer
	registry   prometheus.Registerer
	decorators []orderedDecorator
}
