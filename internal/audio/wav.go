package audio

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Minimal WAV (RIFF) container support.
//
// The narration model returns a bare PCM elementary stream. Some playback
// and OS audio layers classify headerless streams as low-fidelity
// "communication" audio purely from the missing container, so every PCM
// payload is wrapped into a well-formed WAV file before it leaves this
// package. No third-party codec library in our stack covers raw RIFF header
// synthesis; the header is 44 fixed bytes written with encoding/binary.
// ---------------------------------------------------------------------------

const wavHeaderSize = 44

// WrapPCM prepends a standard WAV header to headerless 16-bit LE PCM.
func WrapPCM(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BytesPerSample
	blockAlign := channels * BytesPerSample

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// IsWAV reports whether payload starts with a RIFF/WAVE signature.
func IsWAV(payload []byte) bool {
	return len(payload) >= 12 &&
		string(payload[0:4]) == "RIFF" &&
		string(payload[8:12]) == "WAVE"
}

// decodeWAV parses a RIFF/WAVE payload into a Buffer. Only uncompressed
// 16-bit PCM is supported — that is the only format our collaborators emit.
func decodeWAV(payload []byte) (*Buffer, error) {
	if !IsWAV(payload) {
		return nil, fmt.Errorf("not a RIFF/WAVE payload")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		data       []byte
	)

	// Walk the chunk list; fmt precedes data in well-formed files, but tolerate
	// any ordering and unknown chunks (LIST, fact, etc).
	pos := 12
	for pos+8 <= len(payload) {
		id := string(payload[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(payload[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(payload) {
			size = len(payload) - body // truncated final chunk, take what's there
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(payload[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported audio format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(payload[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(payload[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(payload[body+14 : body+16]))
		case "data":
			data = payload[body : body+size]
		}

		// Chunks are word-aligned
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d (want 16)", bits)
	}
	if data == nil {
		return nil, fmt.Errorf("missing data chunk")
	}

	return &Buffer{PCM: data, SampleRate: sampleRate, Channels: channels}, nil
}
