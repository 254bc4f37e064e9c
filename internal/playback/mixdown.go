package playback

import (
	"github.com/dlnapm/egreetz/internal/audio"
)

// RenderMix renders the trimmed, gain-staged narration + looping music mix
// into a single mono buffer at the narration sample rate. This is the
// offline counterpart of the live engine: the same offsets, gains and fade
// envelope, evaluated per output frame instead of per display tick. Used
// for the preview/export download.
//
// Either track may be nil; the mix simply omits it. Tracks with other
// sample rates are read by time index (nearest frame).
func RenderMix(narration, music *audio.Buffer, trim TrimWindow, videoDuration float64) *audio.Buffer {
	trim.ClampToDuration(videoDuration)
	end := trim.EffectiveEnd(videoDuration)
	if end <= trim.Start {
		return &audio.Buffer{SampleRate: audio.NarrationSampleRate, Channels: 1}
	}

	rate := audio.NarrationSampleRate
	frames := int((end - trim.Start) * float64(rate))
	out := make([]byte, frames*audio.BytesPerSample)

	musicDur := music.Duration()

	for i := 0; i < frames; i++ {
		t := trim.Start + float64(i)/float64(rate) // absolute video time
		factor := EvaluateTick(t, trim, videoDuration).Factor

		var mixed float64
		if narration != nil {
			// Narration aligns to seconds since trim start.
			mixed += float64(narration.SampleAt(NarrationOffset(t, trim.Start))) * NarrationGain
		}
		if music != nil && musicDur > 0 {
			mixed += float64(music.SampleAt(MusicOffset(t, musicDur))) * MusicGain
		}

		v := int(mixed * factor)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[2*i] = byte(uint16(int16(v)))
		out[2*i+1] = byte(uint16(int16(v)) >> 8)
	}

	return &audio.Buffer{PCM: out, SampleRate: rate, Channels: 1}
}
