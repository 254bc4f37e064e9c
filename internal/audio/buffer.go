package audio

// ---------------------------------------------------------------------------
// Decoded audio buffers.
// Narration arrives from the TTS model as headerless linear PCM at a fixed
// rate; music arrives as a container-wrapped file. Both decode into a Buffer
// so the playback layer never has to care where the samples came from.
// ---------------------------------------------------------------------------

const (
	// NarrationSampleRate is the fixed output rate of the narration model.
	NarrationSampleRate = 24000

	// BytesPerSample for 16-bit linear PCM.
	BytesPerSample = 2
)

// Buffer holds decoded 16-bit little-endian PCM samples.
type Buffer struct {
	PCM        []byte // interleaved 16-bit LE samples
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels == 0 {
		return 0
	}
	return len(b.PCM) / (BytesPerSample * b.Channels)
}

// Duration returns the buffer length in seconds, derived from the payload
// length. It is never stored separately from the samples it describes.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Sample returns the frame at index i mixed down to a single value.
// Stereo frames are averaged; out-of-range indexes read as silence.
func (b *Buffer) Sample(i int) int16 {
	if b == nil || i < 0 || i >= b.Frames() {
		return 0
	}
	base := i * BytesPerSample * b.Channels
	if b.Channels == 1 {
		return int16(uint16(b.PCM[base]) | uint16(b.PCM[base+1])<<8)
	}
	var sum int
	for c := 0; c < b.Channels; c++ {
		off := base + c*BytesPerSample
		sum += int(int16(uint16(b.PCM[off]) | uint16(b.PCM[off+1])<<8))
	}
	return int16(sum / b.Channels)
}

// SampleAt returns the sample value at time t seconds (nearest frame).
// Used by the mixdown path to read tracks with differing sample rates.
func (b *Buffer) SampleAt(t float64) int16 {
	if b == nil || t < 0 {
		return 0
	}
	return b.Sample(int(t * float64(b.SampleRate)))
}
