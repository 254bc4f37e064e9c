package services

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Narration Service
// Gemini TTS renders the greeting script to speech. The model emits raw
// 16-bit PCM at 24 kHz mono with no container; the audio package wraps it
// for storage. Narration is optional end to end — any failure here leaves
// the greeting silent rather than failing production.
// ---------------------------------------------------------------------------

const (
	defaultTTSModel  = "gemini-2.5-flash-preview-tts"
	defaultVoiceName = "Kore"
)

// NarrationService implements production.Narrator via the Gemini API.
type NarrationService struct {
	client *genai.Client
	model  string
}

func NewNarrationService(ctx context.Context, apiKey, model string) (*NarrationService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultTTSModel
	}
	return &NarrationService{client: client, model: model}, nil
}

// Narrate renders the script with the requested prebuilt voice and returns
// the raw PCM payload. An empty script returns nil audio and no error.
func (s *NarrationService) Narrate(ctx context.Context, script, voiceName string) ([]byte, error) {
	if script == "" {
		return nil, nil
	}
	if voiceName == "" {
		voiceName = defaultVoiceName
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: voiceName,
				},
			},
		},
	}

	prompt := fmt.Sprintf("Read this greeting warmly and naturally: %s", script)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("tts response carried no candidates")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			log.Printf("[Narration] Rendered %d bytes of speech (voice=%s)", len(part.InlineData.Data), voiceName)
			return part.InlineData.Data, nil
		}
	}
	return nil, fmt.Errorf("no audio data in tts response")
}
