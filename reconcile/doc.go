// Package reconcile blends locally simulated state toward remote
// authoritative snapshots without visible snapping.
//
// The guest's ball tracks the host's position-update snapshots: each snapshot
// starts a 100ms interpolation from the current local state to the received
// one, eased with smoothstep and committed only when the positional delta
// clears a 0.05 dead zone. If more than a second passes without a snapshot,
// the ball reverts to local simulation until the next one arrives. The host
// never reconciles the ball; it only produces snapshots, gated to a 50ms
// cadence.
//
// The remote player's avatar uses the same easing without authority gating.
//
// The package assumes ordered snapshot delivery over a single connection;
// there are no sequence numbers to reject stale samples.
package reconcile
