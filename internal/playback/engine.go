package playback

import (
	"log"
	"math"

	"github.com/dlnapm/egreetz/internal/audio"
)

// ---------------------------------------------------------------------------
// Synchronized playback engine.
//
// The video transport is the single source of truth for timeline position;
// audio tracks are slaves, never the master clock. Sources are not pausable
// objects — pause is stop-and-recreate-on-resume, and a seek while playing
// is exactly a fresh play at the new offset.
// ---------------------------------------------------------------------------

// Mix-balance constants. The music bed sits low so it never masks the
// narration; these are not user-configurable in this engine.
const (
	NarrationGain = 1.0
	MusicGain     = 0.28
)

// LatencyHintPlayback is the profile an Output should be created with:
// sustained media playback, not a low-latency interactive/call route. Some
// platforms route and volume-manage "communication" audio differently.
const LatencyHintPlayback = "playback"

// Transport is the controlling video element. Nothing mutates its position
// except explicit user scrubbing and the hard stop at the trim end.
type Transport interface {
	CurrentTime() float64
	Duration() float64
	Pause()
	Seek(t float64)
}

// Source is one live, started audio source instance.
type Source interface {
	SetGain(gain float64)
	Stop()
}

// SourceOptions configures a newly started source.
type SourceOptions struct {
	Offset float64 // seconds into the buffer
	Gain   float64
	Loop   bool
}

// Output is the platform audio sink owned by exactly one session. Resume is
// attempted transparently before starting sources to cover autoplay-policy
// suspension.
type Output interface {
	Start(buf *audio.Buffer, opts SourceOptions) (Source, error)
	Resume() error
	Close() error
}

// NarrationOffset maps video time to narration-buffer time: narration
// aligns to "seconds since trim start", not raw video time.
func NarrationOffset(videoTime, trimStart float64) float64 {
	return videoTime - trimStart
}

// MusicOffset maps video time into the looping music bed.
func MusicOffset(videoTime, musicDuration float64) float64 {
	if musicDuration <= 0 {
		return 0
	}
	return math.Mod(videoTime, musicDuration)
}

// Engine starts and stops audio sources in lockstep with video transport
// events. Either buffer may be nil — a track that failed to decode is
// simply absent, and the remaining tracks still play.
type Engine struct {
	out       Output
	narration *audio.Buffer
	music     *audio.Buffer

	trim *TrimWindow

	playing   bool
	narrSrc   Source
	musicSrc  Source
	lastGainF float64
}

func NewEngine(out Output, narration, music *audio.Buffer, trim *TrimWindow) *Engine {
	return &Engine{
		out:       out,
		narration: narration,
		music:     music,
		trim:      trim,
		lastGainF: 1,
	}
}

// HandlePlay (re)creates both source instances aligned to the video's
// current position.
func (e *Engine) HandlePlay(videoTime float64) {
	e.stopSources()

	if err := e.out.Resume(); err != nil {
		log.Printf("[Playback] output resume failed: %v", err)
	}

	if e.narration != nil {
		off := NarrationOffset(videoTime, e.trim.Start)
		// A narration that has already finished gets no source at all.
		if off >= 0 && off < e.narration.Duration() {
			src, err := e.out.Start(e.narration, SourceOptions{Offset: off, Gain: NarrationGain * e.lastGainF})
			if err != nil {
				log.Printf("[Playback] narration source failed: %v", err)
			} else {
				e.narrSrc = src
			}
		}
	}

	if e.music != nil && e.music.Duration() > 0 {
		off := MusicOffset(videoTime, e.music.Duration())
		src, err := e.out.Start(e.music, SourceOptions{Offset: off, Gain: MusicGain * e.lastGainF, Loop: true})
		if err != nil {
			log.Printf("[Playback] music source failed: %v", err)
		} else {
			e.musicSrc = src
		}
	}

	e.playing = true
}

// HandlePause stops and discards both sources immediately.
func (e *Engine) HandlePause() {
	e.stopSources()
	e.playing = false
}

// HandleStall handles the transport's "waiting" state: sources stop so
// audio never runs ahead of a buffering video. Playback resumes via the
// transport's next play event.
func (e *Engine) HandleStall() {
	e.stopSources()
}

// HandleSeek re-syncs to a new position. While playing this is exactly a
// fresh play; while paused the next play event picks up the new offset.
func (e *Engine) HandleSeek(videoTime float64) {
	if e.playing {
		e.HandlePlay(videoTime)
	}
}

// ApplyFactor applies a fade factor on top of each track's base gain.
// Called every tick, so a stale factor never survives a scrub.
func (e *Engine) ApplyFactor(f float64) {
	e.lastGainF = f
	if e.narrSrc != nil {
		e.narrSrc.SetGain(NarrationGain * f)
	}
	if e.musicSrc != nil {
		e.musicSrc.SetGain(MusicGain * f)
	}
}

// Playing reports whether the engine considers the transport playing.
func (e *Engine) Playing() bool {
	return e.playing
}

func (e *Engine) stopSources() {
	if e.narrSrc != nil {
		e.narrSrc.Stop()
		e.narrSrc = nil
	}
	if e.musicSrc != nil {
		e.musicSrc.Stop()
		e.musicSrc = nil
	}
}
