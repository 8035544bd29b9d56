package reconcile

import (
	"math"
	"time"

	"github.com/coinkick/coinkick/protocol"
)

// Protocol timings for snapshot blending.
const (
	// DefaultDuration is how long one snapshot is blended in.
	DefaultDuration = 100 * time.Millisecond

	// DefaultDeadZone is the positional delta below which a blended value
	// is not committed, to avoid micro-jitter.
	DefaultDeadZone = 0.05

	// DefaultStaleAfter is how long without a snapshot before the ball
	// reverts to local simulation.
	DefaultStaleAfter = time.Second

	// DefaultSendInterval is the host's snapshot cadence.
	DefaultSendInterval = 50 * time.Millisecond
)

// Vec3 is a position or velocity sample.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the euclidean distance between two points.
func (v Vec3) DistanceTo(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// Smoothstep eases interpolation progress: t = p*p*(3-2p).
func Smoothstep(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return p * p * (3 - 2*p)
}

// Body is the physics-state handle the reconciler writes through. The game
// layer owns the actual simulation; this interface keeps the blending logic
// testable without an engine.
type Body interface {
	Position() Vec3
	Velocity() Vec3
	SetPosition(Vec3)
	SetVelocity(Vec3)
}

// BallSync blends a locally simulated ball toward the host's authoritative
// snapshots. It is only ever attached on the guest side; the host's ball is
// the source of truth and never reconciled.
type BallSync struct {
	body Body

	startPos  Vec3
	targetPos Vec3
	startVel  Vec3
	targetVel Vec3
	progress  float64

	active bool
	remote bool

	duration   time.Duration
	deadZone   float64
	staleAfter time.Duration

	lastSnapshot time.Time
	now          func() time.Time
}

// NewBallSync creates a reconciler for the given ball body with the stock
// protocol timings.
func NewBallSync(body Body) *BallSync {
	return &BallSync{
		body:       body,
		duration:   DefaultDuration,
		deadZone:   DefaultDeadZone,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// Observe ingests one authoritative ball snapshot: the current local state
// becomes the interpolation start, the snapshot the target, and blending
// restarts from zero.
func (s *BallSync) Observe(ball protocol.BallState) {
	s.startPos = s.body.Position()
	s.startVel = s.body.Velocity()
	s.targetPos = Vec3{X: ball.X, Y: ball.Y, Z: ball.Z}
	s.targetVel = Vec3{X: ball.VelocityX, Y: ball.VelocityY, Z: ball.VelocityZ}
	s.progress = 0
	s.active = true
	s.remote = true
	s.lastSnapshot = s.now()
}

// Step advances blending by one simulation tick. Values are committed to the
// body only when the positional delta clears the dead zone. Going longer than
// staleAfter without a snapshot hands the ball back to local simulation.
func (s *BallSync) Step(dt time.Duration) {
	if s.remote && s.now().Sub(s.lastSnapshot) > s.staleAfter {
		s.remote = false
		s.active = false
	}
	if !s.active {
		return
	}

	s.progress += float64(dt) / float64(s.duration)
	p := s.progress
	if p > 1 {
		p = 1
	}
	t := Smoothstep(p)

	newPos := Lerp(s.startPos, s.targetPos, t)
	newVel := Lerp(s.startVel, s.targetVel, t)

	if newPos.DistanceTo(s.body.Position()) > s.deadZone {
		s.body.SetPosition(newPos)
		s.body.SetVelocity(newVel)
	}

	if p >= 1 {
		s.active = false
	}
}

// Active reports whether a snapshot is currently being blended in.
func (s *BallSync) Active() bool { return s.active }

// RemoteControlled reports whether the ball is tracking remote authority, as
// opposed to having fallen back to local simulation.
func (s *BallSync) RemoteControlled() bool { return s.remote }
