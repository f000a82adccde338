package capture

import "time"

// DefaultIdleTimeout is how long the camera stays fast after the last motion.
const DefaultIdleTimeout = 2 * time.Second

// RateController switches between the idle and active capture rates.
type RateController struct {
	idleFPS     int
	activeFPS   int
	idleTimeout time.Duration
	active      bool
	lastMotion  time.Time
}

// NewRateController creates a controller that starts idle.
func NewRateController(idleFPS, activeFPS int, idleTimeout time.Duration) *RateController {
	return &RateController{
		idleFPS:     idleFPS,
		activeFPS:   activeFPS,
		idleTimeout: idleTimeout,
	}
}

// Observe records whether the current frame had motion and returns the rate to
// capture at, and whether it changed.
func (r *RateController) Observe(motion bool, now time.Time) (int, bool) {
	if motion {
		r.lastMotion = now
		if !r.active {
			r.active = true
			return r.activeFPS, true
		}
		return r.activeFPS, false
	}

	if r.active && now.Sub(r.lastMotion) > r.idleTimeout {
		r.active = false
		return r.idleFPS, true
	}
	return r.FPS(), false
}

// Active reports whether the controller is in the fast mode.
func (r *RateController) Active() bool {
	return r.active
}

// FPS returns the current capture rate.
func (r *RateController) FPS() int {
	if r.active {
		return r.activeFPS
	}
	return r.idleFPS
}
