package client

import "sync"

// DefaultFollowThreshold is how close to the bottom of the transcript, in
// pixels, the viewport must be for new content to pull it along.
const DefaultFollowThreshold = 100

// FollowGate decides whether arriving content should scroll the transcript
// view. It follows only while the reader is already near the bottom; once they
// scroll up to re-read something, new fragments stop yanking the view down.
type FollowGate struct {
	mu        sync.Mutex
	threshold float64
	distance  float64
}

// NewFollowGate creates a gate with the given threshold. Non-positive values
// fall back to DefaultFollowThreshold.
func NewFollowGate(threshold float64) *FollowGate {
	if threshold <= 0 {
		threshold = DefaultFollowThreshold
	}
	return &FollowGate{threshold: threshold}
}

// Observe records the viewport's current distance from the bottom of the
// transcript. Call it on every scroll event.
func (g *FollowGate) Observe(distanceFromBottom float64) {
	g.mu.Lock()
	g.distance = distanceFromBottom
	g.mu.Unlock()
}

// ShouldFollow reports whether newly arrived content should scroll the view to
// the bottom, based on the most recently observed position.
func (g *FollowGate) ShouldFollow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.distance < g.threshold
}
