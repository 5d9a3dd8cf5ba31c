// Package pid implements a proportional-integral-derivative controller
// for vehicle control loops: set point tracking with an integral
// saturation clamp, an active region outside which the integral term is
// suppressed, pause/resume semantics, and a moving-average low-pass
// filter on the derivative term.
package pid

import (
	"math"
	"time"
)

// Controller is a single PID control loop. It is not safe for
// concurrent use; a control loop owns its controller.
type Controller struct {
	now  func() time.Time
	last time.Time

	p, i, d      float64
	setPoint     float64
	activeRegion float64 // <= 0 means unlimited

	lastErr  float64
	integral float64
	paused   bool

	// moving-average filter over the raw derivative
	dBuf  []float64
	dHead int
}

// New creates a controller tracking setPoint with the given
// coefficients. The controller starts paused: the first Update
// establishes the time base and contributes only the proportional
// term.
func New(setPoint, p, i, d float64) *Controller {
	c := &Controller{
		now:          time.Now,
		p:            p,
		i:            i,
		d:            d,
		setPoint:     setPoint,
		activeRegion: -1,
		paused:       true,
		dBuf:         make([]float64, 1),
	}
	c.last = c.now()
	return c
}

// Update feeds the controller a new process variable reading and
// returns the manipulated variable.
func (c *Controller) Update(pv float64) float64 {
	now := c.now()
	dt := now.Sub(c.last).Seconds()
	c.last = now

	e := c.setPoint - pv

	if c.paused {
		// Resuming: the elapsed interval and previous error are
		// meaningless, so only the proportional term applies. The
		// integral carries over untouched.
		c.paused = false
		c.lastErr = e
		return c.p*e + c.i*c.integral
	}

	mv := c.p * e

	c.integral += dt * e
	switch {
	case c.i != 0 && c.integral*c.i > 1:
		c.integral = 1 / c.i
	case c.i != 0 && c.integral*c.i < -1:
		c.integral = -1 / c.i
	}
	// Outside the active region actuators are saturated anyway;
	// accumulating error there only causes overshoot on reentry.
	if c.activeRegion > 0 && math.Abs(e) > c.activeRegion {
		c.integral = 0
	}
	mv += c.i * c.integral

	if dt > 0 {
		mv += c.d * c.filterDerivative((e-c.lastErr)/dt)
	}

	c.lastErr = e
	return mv
}

// filterDerivative pushes a raw derivative sample into the ring buffer
// and returns the buffer average.
func (c *Controller) filterDerivative(sample float64) float64 {
	c.dBuf[c.dHead] = sample
	c.dHead = (c.dHead + 1) % len(c.dBuf)

	sum := 0.0
	for _, v := range c.dBuf {
		sum += v
	}
	return sum / float64(len(c.dBuf))
}

// Pause suspends the controller. The next Update reestablishes the
// time base instead of integrating across the gap.
func (c *Controller) Pause() {
	c.paused = true
}

// ResetIntegral clears the accumulated error.
func (c *Controller) ResetIntegral() {
	c.integral = 0
}

// SetSetPoint changes the target. The controller pauses so the next
// Update does not derive a spurious derivative spike from the jump in
// error.
func (c *Controller) SetSetPoint(sp float64) {
	c.setPoint = sp
	c.paused = true
}

// SetCoefficients replaces the three gain coefficients.
func (c *Controller) SetCoefficients(p, i, d float64) {
	c.p = p
	c.i = i
	c.d = d
}

// SetActiveRegion bounds the error band (plus or minus) within which
// the integral term accumulates. A value <= 0 removes the bound.
func (c *Controller) SetActiveRegion(r float64) {
	c.activeRegion = r
}

// SetDerivativeBufferSize resizes the derivative moving-average filter
// to n samples and clears it. n < 1 is treated as 1 (no smoothing).
func (c *Controller) SetDerivativeBufferSize(n int) {
	if n < 1 {
		n = 1
	}
	c.dBuf = make([]float64, n)
	c.dHead = 0
}
