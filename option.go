package esimpay

import (
	"time"

	"github.com/kokio-labs/esimpay/logger"
	"github.com/kokio-labs/esimpay/metrics"
	"github.com/kokio-labs/esimpay/provisioning"
	"github.com/kokio-labs/esimpay/sessionstore"
	"github.com/kokio-labs/esimpay/verification"
)

// Option configures an EsimPay instance.
type Option func(*EsimPay)

// WithLogger sets the logger used by the facade and every component it
// builds. Defaults to a no-op logger.
func WithLogger(log logger.Logger) Option {
	return func(e *EsimPay) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(e *EsimPay) {
		if rec != nil {
			e.rec = rec
		}
	}
}

// WithSessionStore persists provisioning sessions after every state
// transition, so interrupted workflows can be resumed.
func WithSessionStore(store sessionstore.Store) Option {
	return func(e *EsimPay) {
		e.store = store
	}
}

// WithSaltSource overrides the salt used for eSIM wallet deployment.
func WithSaltSource(salts provisioning.SaltSource) Option {
	return func(e *EsimPay) {
		e.salts = salts
	}
}

// WithDecimalStrategy overrides how token amounts are scaled during
// transfer verification.
func WithDecimalStrategy(strategy verification.DecimalStrategy) Option {
	return func(e *EsimPay) {
		e.decimals = strategy
	}
}

// WithTimeout bounds each facade call when the caller's context has no
// deadline. Overrides Config.DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *EsimPay) {
		e.timeout = timeout
	}
}
