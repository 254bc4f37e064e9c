package playback

import (
	"math"
	"testing"
)

func TestTrimEditMinimumSeparation(t *testing.T) {
	w := TrimWindow{Start: 0, End: 10}

	if !w.SetStart(3) {
		t.Fatal("legal start edit rejected")
	}
	if w.Start != 3 {
		t.Fatalf("start: got %v, want 3", w.Start)
	}

	// Rejected edits must leave both bounds unchanged
	if w.SetStart(9.5) {
		t.Error("start edit violating separation was accepted")
	}
	if w.SetStart(-1) {
		t.Error("negative start accepted")
	}
	if w.Start != 3 || w.End != 10 {
		t.Errorf("bounds moved after rejected edit: start=%v end=%v", w.Start, w.End)
	}

	if w.SetEnd(3.5) {
		t.Error("end edit violating separation was accepted")
	}
	if !w.SetEnd(4) {
		t.Error("end edit at exactly minimum separation rejected")
	}
	if w.End != 4 {
		t.Errorf("end: got %v, want 4", w.End)
	}

	// Invariant after every accepted edit: end - start >= 1
	if w.End-w.Start < MinTrimSeparation {
		t.Errorf("separation invariant broken: start=%v end=%v", w.Start, w.End)
	}
}

func TestClampToDuration(t *testing.T) {
	// Placeholder end snaps to full duration on metadata load
	w := TrimWindow{Start: 0, End: 0}
	w.ClampToDuration(14)
	if w.End != 14 {
		t.Errorf("placeholder end: got %v, want 14", w.End)
	}

	// End beyond the real duration is pulled back
	w = TrimWindow{Start: 2, End: 30}
	w.ClampToDuration(14)
	if w.End != 14 {
		t.Errorf("overlong end: got %v, want 14", w.End)
	}
	if w.Start != 2 {
		t.Errorf("start moved unnecessarily: got %v", w.Start)
	}

	// A start that no longer fits is pulled back too
	w = TrimWindow{Start: 13.8, End: 30}
	w.ClampToDuration(14)
	if w.Start != 13 {
		t.Errorf("start: got %v, want 13", w.Start)
	}

	// Unknown duration leaves the window alone
	w = TrimWindow{Start: 1, End: 5}
	w.ClampToDuration(0)
	if w.Start != 1 || w.End != 5 {
		t.Errorf("window changed with unknown duration: %+v", w)
	}
}

func TestFadeEnvelopeBoundaries(t *testing.T) {
	w := TrimWindow{Start: 0, End: 10, FadeOut: true}

	// At exactly fadeDuration remaining, factor = 1.0
	e := EvaluateTick(10-FadeDuration, w, 14)
	if math.Abs(e.Factor-1.0) > 1e-9 {
		t.Errorf("factor at fade entry: got %v, want 1.0", e.Factor)
	}

	// Just before the end, factor approaches 0
	e = EvaluateTick(9.97, w, 14)
	if e.Factor > 0.011 {
		t.Errorf("factor near end: got %v, want ≈0.01", e.Factor)
	}

	// Midway through the fade
	e = EvaluateTick(8.5, w, 14)
	if math.Abs(e.Factor-0.5) > 1e-9 {
		t.Errorf("factor mid-fade: got %v, want 0.5", e.Factor)
	}
}

func TestFadeEnvelopeMonotonic(t *testing.T) {
	w := TrimWindow{Start: 0, End: 10, FadeOut: true}

	prev := math.Inf(1)
	for now := 6.8; now < 10; now += 0.05 {
		f := EvaluateTick(now, w, 14).Factor
		if f > prev+1e-12 {
			t.Fatalf("factor increased at t=%v: %v -> %v", now, prev, f)
		}
		prev = f
	}
}

func TestFadeResetsOnScrubBack(t *testing.T) {
	w := TrimWindow{Start: 0, End: 10, FadeOut: true}

	// Deep in the fade...
	if f := EvaluateTick(9.5, w, 14).Factor; f >= 1 {
		t.Fatalf("expected partial fade, got %v", f)
	}

	// ...then scrubbed back before end - fadeDuration: snaps to full
	if f := EvaluateTick(6.9, w, 14).Factor; f != 1 {
		t.Errorf("factor after scrub back: got %v, want 1.0", f)
	}
}

func TestFadeDisabledForcesFull(t *testing.T) {
	w := TrimWindow{Start: 0, End: 10, FadeOut: false}

	if f := EvaluateTick(9.9, w, 14).Factor; f != 1 {
		t.Errorf("factor with fade disabled: got %v, want 1.0", f)
	}
}

func TestHardStopAtTrimEnd(t *testing.T) {
	w := TrimWindow{Start: 2, End: 10}

	e := EvaluateTick(10, w, 14)
	if !e.HardStop {
		t.Fatal("expected hard stop at trim end")
	}
	if e.RewindTo != 2 {
		t.Errorf("rewind target: got %v, want trim start 2", e.RewindTo)
	}
	if e.Factor != 1 {
		t.Errorf("factor on hard stop: got %v, want reset to 1.0", e.Factor)
	}

	// Past the end behaves the same
	if !EvaluateTick(11.2, w, 14).HardStop {
		t.Error("expected hard stop past trim end")
	}

	// Just inside the window plays on
	if EvaluateTick(9.99, w, 14).HardStop {
		t.Error("unexpected hard stop inside the window")
	}
}

func TestPlaceholderEndUsesVideoDuration(t *testing.T) {
	w := TrimWindow{Start: 0, End: 0, FadeOut: true}

	// With end unset the effective window runs to the full 14s video
	if EvaluateTick(13.9, w, 14).HardStop {
		t.Error("unexpected hard stop before the video ends")
	}
	if !EvaluateTick(14, w, 14).HardStop {
		t.Error("expected hard stop at video end")
	}

	// Fade is anchored to the effective end
	f := EvaluateTick(12.5, w, 14).Factor
	if math.Abs(f-0.5) > 1e-9 {
		t.Errorf("fade factor against placeholder end: got %v, want 0.5", f)
	}
}
