package production

import "math"

// ---------------------------------------------------------------------------
// Duration planning.
// The remote generator produces coarse fixed-length segments; the planner
// only decides how many of them a greeting needs. The target is never an
// exact contract with the generator.
// ---------------------------------------------------------------------------

const (
	// SegmentSeconds is the fixed length of one generated video segment.
	SegmentSeconds = 7.0

	// SpeechBufferSeconds of extra visual runway so the video outlasts
	// the narration.
	SpeechBufferSeconds = 3.5

	// MinExtendedSeconds is the floor applied when the user asks for an
	// extended greeting.
	MinExtendedSeconds = 15.0

	// FallbackNarrationSeconds is the deterministic estimate used when the
	// narration result is not yet available at video-submission time.
	FallbackNarrationSeconds = 5.0
)

// PlanTarget computes the target video length in seconds.
// narrationSeconds <= 0 means "unknown" and uses the fallback estimate.
func PlanTarget(narrationSeconds float64, extended bool) float64 {
	if narrationSeconds <= 0 {
		narrationSeconds = FallbackNarrationSeconds
	}
	target := math.Ceil(narrationSeconds) + SpeechBufferSeconds
	if extended && target < MinExtendedSeconds {
		target = MinExtendedSeconds
	}
	return target
}

// SegmentsNeeded returns how many fixed-length segments cover the target.
func SegmentsNeeded(target float64) int {
	if target <= 0 {
		return 1
	}
	return int(math.Ceil(target / SegmentSeconds))
}
