package playback

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/dlnapm/egreetz/internal/audio"
)

// constantBuf builds a mono buffer holding the same sample value throughout.
func constantBuf(value int16, seconds float64, rate int) *audio.Buffer {
	n := int(seconds * float64(rate))
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(value))
	}
	return &audio.Buffer{PCM: pcm, SampleRate: rate, Channels: 1}
}

func sampleAt(buf *audio.Buffer, t float64) int16 {
	return buf.Sample(int(t * float64(buf.SampleRate)))
}

func TestRenderMixGainStaging(t *testing.T) {
	narr := constantBuf(10000, 8, audio.NarrationSampleRate)
	music := constantBuf(10000, 4, audio.NarrationSampleRate)

	out := RenderMix(narr, music, TrimWindow{Start: 0, End: 10}, 14)

	if math.Abs(out.Duration()-10) > 1e-3 {
		t.Fatalf("mix duration: got %v, want 10", out.Duration())
	}

	// Inside the narration: narration*1.0 + music*0.28
	want := int16(10000 + 10000*MusicGain)
	if got := sampleAt(out, 2.0); abs16(got-want) > 2 {
		t.Errorf("mixed sample: got %d, want ≈%d", got, want)
	}

	// After the 8s narration ends, only the looped music bed remains
	wantTail := int16(10000 * MusicGain)
	if got := sampleAt(out, 9.0); abs16(got-wantTail) > 2 {
		t.Errorf("tail sample: got %d, want ≈%d", got, wantTail)
	}
}

func TestRenderMixAlignsNarrationToTrimStart(t *testing.T) {
	narr := constantBuf(8000, 2, audio.NarrationSampleRate)

	// Trim starts at 3s: narration occupies [3, 5) of video time,
	// i.e. the first two seconds of the rendered window.
	out := RenderMix(narr, nil, TrimWindow{Start: 3, End: 8}, 14)

	if got := sampleAt(out, 1.0); abs16(got-8000) > 2 {
		t.Errorf("sample during narration: got %d, want ≈8000", got)
	}
	if got := sampleAt(out, 3.0); got != 0 {
		t.Errorf("sample after narration: got %d, want 0", got)
	}
}

func TestRenderMixAppliesFadeEnvelope(t *testing.T) {
	narr := constantBuf(10000, 12, audio.NarrationSampleRate)

	out := RenderMix(narr, nil, TrimWindow{Start: 0, End: 10, FadeOut: true}, 14)

	// Mid-fade at t=8.5 (1.5s remaining of a 3s fade): factor 0.5
	if got := sampleAt(out, 8.5); abs16(got-5000) > 5 {
		t.Errorf("mid-fade sample: got %d, want ≈5000", got)
	}

	// Before the fade window: untouched
	if got := sampleAt(out, 5.0); abs16(got-10000) > 2 {
		t.Errorf("pre-fade sample: got %d, want ≈10000", got)
	}

	// The very last frames approach silence
	if got := sampleAt(out, 9.999); abs16(got) > 40 {
		t.Errorf("final sample: got %d, want ≈0", got)
	}
}

func TestRenderMixClipsInsteadOfWrapping(t *testing.T) {
	narr := constantBuf(30000, 2, audio.NarrationSampleRate)
	music := constantBuf(30000, 2, audio.NarrationSampleRate)

	out := RenderMix(narr, music, TrimWindow{Start: 0, End: 2}, 2)

	// 30000 + 30000*0.28 overflows int16; must clamp, not wrap negative
	if got := sampleAt(out, 1.0); got != 32767 {
		t.Errorf("clipped sample: got %d, want 32767", got)
	}
}

func TestRenderMixEmptyTracks(t *testing.T) {
	out := RenderMix(nil, nil, TrimWindow{Start: 0, End: 5}, 14)
	if math.Abs(out.Duration()-5) > 1e-3 {
		t.Fatalf("mix duration: got %v, want 5", out.Duration())
	}
	for _, ti := range []float64{0, 2.5, 4.9} {
		if got := sampleAt(out, ti); got != 0 {
			t.Errorf("silent mix sample at %v: got %d", ti, got)
		}
	}
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
