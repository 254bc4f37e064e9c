package audio

import (
	"encoding/base64"
	"fmt"
	"log"
)

// DecodeNarration turns a narration payload into a playable buffer.
//
// Payloads fetched from storage are container-wrapped WAV and decode
// directly. Payloads straight from the narration model are headerless
// 24 kHz mono PCM. The content type of a fetched asset is not always
// reliable, so a failed direct decode falls back to the PCM-wrap path
// instead of surfacing an error.
func DecodeNarration(payload []byte) (*Buffer, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty narration payload")
	}

	if IsWAV(payload) {
		buf, err := decodeWAV(payload)
		if err == nil {
			return buf, nil
		}
		log.Printf("[Audio] direct narration decode failed, retrying as raw PCM: %v", err)
	}

	return decodeWAV(WrapPCM(payload, NarrationSampleRate, 1))
}

// DecodeNarrationBase64 decodes a base64-encoded narration payload, the
// form in which the model delivers inline audio.
func DecodeNarrationBase64(encoded string) (*Buffer, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode narration base64: %w", err)
	}
	return DecodeNarration(payload)
}

// DecodeMusic decodes a music track. Music always arrives as an encoded
// container; there is no raw-PCM fallback for it.
func DecodeMusic(payload []byte) (*Buffer, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty music payload")
	}
	return decodeWAV(payload)
}
