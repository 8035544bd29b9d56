package reconcile

import (
	"math"
	"time"

	"github.com/coinkick/coinkick/protocol"
)

// PlayerSync blends the remote player's avatar toward incoming position
// samples. Unlike the ball there is no authority question and no dead zone;
// the remote player is always driven by snapshots, just smoothed.
type PlayerSync struct {
	pos      Vec3
	rotation float64

	startPos  Vec3
	targetPos Vec3
	startRot  float64
	targetRot float64
	progress  float64
	active    bool

	duration time.Duration
}

// NewPlayerSync creates a remote-player tracker with the stock blend
// duration.
func NewPlayerSync() *PlayerSync {
	return &PlayerSync{duration: DefaultDuration}
}

// Observe ingests one remote player sample.
func (s *PlayerSync) Observe(p protocol.PlayerState) {
	s.startPos = s.pos
	s.startRot = s.rotation
	s.targetPos = Vec3{X: p.X, Y: p.Y, Z: p.Z}
	s.targetRot = p.Rotation
	s.progress = 0
	s.active = true
}

// Step advances blending by one tick.
func (s *PlayerSync) Step(dt time.Duration) {
	if !s.active {
		return
	}

	s.progress += float64(dt) / float64(s.duration)
	p := s.progress
	if p > 1 {
		p = 1
	}
	t := Smoothstep(p)

	s.pos = Lerp(s.startPos, s.targetPos, t)
	s.rotation = s.startRot + shortestArc(s.startRot, s.targetRot)*t

	if p >= 1 {
		s.active = false
	}
}

// Position returns the blended avatar position.
func (s *PlayerSync) Position() Vec3 { return s.pos }

// Rotation returns the blended avatar heading in radians.
func (s *PlayerSync) Rotation() float64 { return s.rotation }

// shortestArc returns the signed smallest angle from a to b.
func shortestArc(a, b float64) float64 {
	d := b - a
	return math.Atan2(math.Sin(d), math.Cos(d))
}

// Cadence rate-limits the host's outgoing snapshots to the protocol's send
// interval.
type Cadence struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewCadence creates a send gate; interval <= 0 selects the 50ms default.
func NewCadence(interval time.Duration) *Cadence {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	return &Cadence{interval: interval, now: time.Now}
}

// Ready reports whether enough time has passed to send another snapshot, and
// if so consumes the slot.
func (c *Cadence) Ready() bool {
	now := c.now()
	if now.Sub(c.last) < c.interval {
		return false
	}
	c.last = now
	return true
}
