package playback

// ---------------------------------------------------------------------------
// Trim window and fade envelope.
//
// The trim end is an enforced hard stop, not a suggested marker: the tick
// evaluator tells the transport to pause and rewind the moment playback
// reaches it. The fade envelope is recomputed every tick from current time,
// never animated once, so scrubbing backward out of the fade window snaps
// everything back to full automatically.
// ---------------------------------------------------------------------------

const (
	// MinTrimSeparation is the smallest allowed playable window.
	MinTrimSeparation = 1.0

	// FadeDuration is the fixed length of the fade-out envelope.
	FadeDuration = 3.0
)

// TrimWindow is the user-editable playable range [Start, End) of a video.
// End == 0 is a placeholder meaning "unset, defaults to full duration".
type TrimWindow struct {
	Start   float64
	End     float64
	FadeOut bool
}

// EffectiveEnd resolves the placeholder end against the real video duration.
func (w TrimWindow) EffectiveEnd(videoDuration float64) float64 {
	if w.End <= 0 || w.End > videoDuration {
		if videoDuration > 0 {
			return videoDuration
		}
	}
	return w.End
}

// SetStart moves the start bound. The edit is rejected — nothing moves —
// when it would bring the bounds closer than the minimum separation or go
// negative.
func (w *TrimWindow) SetStart(v float64) bool {
	if v < 0 {
		return false
	}
	if w.End > 0 && v > w.End-MinTrimSeparation {
		return false
	}
	w.Start = v
	return true
}

// SetEnd moves the end bound, with the same rejection rule.
func (w *TrimWindow) SetEnd(v float64) bool {
	if v < w.Start+MinTrimSeparation {
		return false
	}
	w.End = v
	return true
}

// ClampToDuration re-clamps both bounds once the video's real duration
// becomes known (metadata load). A placeholder end snaps to the full
// duration.
func (w *TrimWindow) ClampToDuration(videoDuration float64) {
	if videoDuration <= 0 {
		return
	}
	if w.End <= 0 || w.End > videoDuration {
		w.End = videoDuration
	}
	if w.Start < 0 {
		w.Start = 0
	}
	if w.Start > w.End-MinTrimSeparation {
		w.Start = w.End - MinTrimSeparation
		if w.Start < 0 {
			w.Start = 0
		}
	}
}

// TickEffect is the output of one trim/fade evaluation: what the presenter
// should do with the transport, the video opacity, and every audio gain.
type TickEffect struct {
	// HardStop tells the transport to pause and rewind to RewindTo.
	HardStop bool
	RewindTo float64

	// Factor multiplies visual opacity and all track gains. 1.0 outside the
	// fade window, linearly down to 0.0 at the trim end.
	Factor float64
}

// EvaluateTick is the pure per-frame evaluation: current time + window +
// duration in, opacity/gain factor out. It must never block; the presenter
// drives it at display refresh cadence.
func EvaluateTick(now float64, w TrimWindow, videoDuration float64) TickEffect {
	end := w.EffectiveEnd(videoDuration)
	if end <= 0 {
		return TickEffect{Factor: 1}
	}

	if now >= end {
		return TickEffect{HardStop: true, RewindTo: w.Start, Factor: 1}
	}

	if w.FadeOut {
		remaining := end - now
		if remaining <= FadeDuration {
			f := remaining / FadeDuration
			if f < 0 {
				f = 0
			} else if f > 1 {
				f = 1
			}
			return TickEffect{Factor: f}
		}
	}

	// Outside the fade window (or fade disabled): force full opacity and
	// gain so stale partial-fade state self-heals.
	return TickEffect{Factor: 1}
}
