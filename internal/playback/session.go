package playback

import (
	"github.com/dlnapm/egreetz/internal/audio"
)

// Session is the transient per-presentation state: one exclusively-owned
// Output, the live sources for both tracks, and the trim window shaping
// them. It lives while one result is being viewed and must be closed when
// the view goes away or a new result replaces it — no two sessions ever
// share an Output.
type Session struct {
	transport Transport
	engine    *Engine
	out       Output
	trim      TrimWindow

	opacity float64
	closed  bool
}

// NewSession wires a transport and an output to decoded buffers. Either
// buffer may be nil when its track failed to decode; the session still
// plays whatever remains. The trim window is re-clamped as soon as the
// transport reports a real duration.
func NewSession(transport Transport, out Output, narration, music *audio.Buffer, trim TrimWindow) *Session {
	s := &Session{
		transport: transport,
		out:       out,
		trim:      trim,
		opacity:   1,
	}
	s.engine = NewEngine(out, narration, music, &s.trim)
	if d := transport.Duration(); d > 0 {
		s.trim.ClampToDuration(d)
	}
	return s
}

// OnMetadataLoaded re-clamps the trim window once the video's real duration
// is known; a placeholder end snaps to the full duration.
func (s *Session) OnMetadataLoaded() {
	s.trim.ClampToDuration(s.transport.Duration())
}

// Transport event handlers — the presenter forwards the video element's own
// events here, in order.

func (s *Session) OnPlay() {
	if s.closed {
		return
	}
	s.engine.HandlePlay(s.transport.CurrentTime())
}

func (s *Session) OnPause() {
	s.engine.HandlePause()
}

func (s *Session) OnStall() {
	s.engine.HandleStall()
}

func (s *Session) OnSeek() {
	s.engine.HandleSeek(s.transport.CurrentTime())
}

// Tick is the recurring per-frame evaluation driven at the presenter's
// refresh cadence. It enforces the trim end as a hard stop and applies the
// fade envelope to opacity and every track gain. It never blocks.
func (s *Session) Tick() {
	effect := EvaluateTick(s.transport.CurrentTime(), s.trim, s.transport.Duration())

	if effect.HardStop {
		s.transport.Pause()
		s.transport.Seek(effect.RewindTo)
		s.engine.HandlePause()
		s.opacity = 1
		s.engine.ApplyFactor(1)
		return
	}

	s.opacity = effect.Factor
	s.engine.ApplyFactor(effect.Factor)
}

// Trim returns the current window.
func (s *Session) Trim() TrimWindow {
	return s.trim
}

// SetTrimStart moves the start bound, rejecting edits that violate the
// minimum separation. Returns whether the edit was accepted.
func (s *Session) SetTrimStart(v float64) bool {
	return s.trim.SetStart(v)
}

// SetTrimEnd moves the end bound with the same rule.
func (s *Session) SetTrimEnd(v float64) bool {
	return s.trim.SetEnd(v)
}

// SetFadeOut toggles the fade envelope. The next tick re-evaluates gains,
// so disabling mid-fade self-heals to full volume.
func (s *Session) SetFadeOut(enabled bool) {
	s.trim.FadeOut = enabled
}

// Opacity returns the video opacity the presenter should render this frame.
func (s *Session) Opacity() float64 {
	return s.opacity
}

// Close tears the session down: stops all live sources and closes the
// owned Output so no timers or handles leak past the presentation.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.engine.HandlePause()
	return s.out.Close()
}
