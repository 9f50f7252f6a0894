package health

import "sync/atomic"

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness gate. Callers set it to false while draining so
// load balancers stop routing new requests before the listener closes.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports whether the process accepts new work.
func IsReady() bool {
	return ready.Load()
}
