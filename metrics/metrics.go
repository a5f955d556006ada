// Package metrics defines the instrumentation hooks the verifier and the
// orchestrator report through.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
