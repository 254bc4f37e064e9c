package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"github.com/dlnapm/egreetz/internal/production"
)

// ---------------------------------------------------------------------------
// Veo Video Generation Service
// Uses the Google Gen AI SDK to generate and extend greeting videos. One
// submission produces one ~7s segment; extensions consume the prior video
// and return a replacement one segment longer, with the remote model owning
// visual continuity between segments.
// ---------------------------------------------------------------------------

const (
	defaultVeoFastModel    = "veo-3.1-fast-generate-preview"
	defaultVeoQualityModel = "veo-3.1-generate-preview"
)

// VeoService implements production.VideoJobService against the Gemini API
// backend. It owns the wire format only — polling cadence, retry bounds and
// error classification live in the orchestrator.
type VeoService struct {
	client       *genai.Client
	fastModel    string
	qualityModel string
}

// NewVeoService creates the video generation service. Empty model names fall
// back to the current Veo preview models; the same Gemini API key serves
// both tiers.
func NewVeoService(ctx context.Context, apiKey, fastModel, qualityModel string) (*VeoService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if fastModel == "" {
		fastModel = defaultVeoFastModel
	}
	if qualityModel == "" {
		qualityModel = defaultVeoQualityModel
	}
	return &VeoService{
		client:       client,
		fastModel:    fastModel,
		qualityModel: qualityModel,
	}, nil
}

// veoJob wraps one in-flight operation. The operation object is replaced on
// every poll; the wrapper keeps the handle stable for the orchestrator.
type veoJob struct {
	op    *genai.GenerateVideosOperation
	model string
}

// buildGreetingPrompt turns the greeting script and scene description into a
// Veo prompt. The narration track is mixed in at playback, so the video
// itself must stay silent.
func buildGreetingPrompt(script, environment string) string {
	var b strings.Builder
	if environment != "" {
		b.WriteString(environment)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, `A warm, celebratory greeting scene. The on-screen action conveys the sentiment of this message without showing any text: %q

Motion direction: gentle, natural, grounded movement. Favor subtle camera drift, soft ambient light, and calm expressive gestures over dramatic motion.

No generated audio, dialogue, captions, or on-screen text. Silent video only.`, script)
	return b.String()
}

func (s *VeoService) modelFor(profile production.GenerationProfile) string {
	if profile == production.ProfileQuality {
		return s.qualityModel
	}
	return s.fastModel
}

// referenceImages maps the asymmetric reference roles onto the remote
// reference types: the subject image anchors who appears, the style image
// anchors the visual treatment.
func referenceImages(refs []production.ReferenceImage) []*genai.VideoGenerationReferenceImage {
	out := make([]*genai.VideoGenerationReferenceImage, 0, len(refs))
	for _, r := range refs {
		refType := genai.VideoGenerationReferenceType("asset")
		if r.Role == production.RoleStyle {
			refType = genai.VideoGenerationReferenceType("style")
		}
		out = append(out, &genai.VideoGenerationReferenceImage{
			Image: &genai.Image{
				ImageBytes: r.Data,
				MIMEType:   r.MIMEType,
			},
			ReferenceType: refType,
		})
	}
	return out
}

// Submit starts one asynchronous generation. A request with a Continuation
// extends the prior asset instead of starting fresh.
func (s *VeoService) Submit(ctx context.Context, req production.SubmitRequest) (production.JobHandle, error) {
	model := s.modelFor(req.Profile)
	prompt := buildGreetingPrompt(req.Script, req.Environment)

	config := &genai.GenerateVideosConfig{
		AspectRatio:      "16:9",
		PersonGeneration: "allow_adult",
		NumberOfVideos:   1,
	}

	var op *genai.GenerateVideosOperation
	var err error

	if req.Continuation != nil {
		prior, ok := req.Continuation.Ref.(*genai.Video)
		if !ok || prior == nil {
			return nil, fmt.Errorf("continuation asset has no remote video reference")
		}
		source := &genai.GenerateVideosSource{
			Prompt: prompt,
			Video:  prior,
		}
		log.Printf("[Veo] Submitting extension (model=%s, prior=%.0fs)", model, req.Continuation.Seconds)
		op, err = s.client.Models.GenerateVideosFromSource(ctx, model, source, config)
	} else {
		if len(req.References) > 0 {
			config.ReferenceImages = referenceImages(req.References)
		}
		log.Printf("[Veo] Submitting generation (model=%s, refs=%d, promptLen=%d)", model, len(req.References), len(prompt))
		op, err = s.client.Models.GenerateVideos(ctx, model, prompt, nil, config)
	}
	if err != nil {
		return nil, classifyCredentialErr(fmt.Errorf("failed to start video generation: %w", err))
	}

	log.Printf("[Veo] Operation started: %s", op.Name)
	return &veoJob{op: op, model: model}, nil
}

// Poll queries one job's status. A completed job reports either an asset, a
// remote error message, or — when safety filters discarded every candidate —
// neither, which the caller treats as a graceful stop.
func (s *VeoService) Poll(ctx context.Context, handle production.JobHandle) (production.PollResult, error) {
	job, ok := handle.(*veoJob)
	if !ok || job == nil {
		return production.PollResult{}, fmt.Errorf("invalid job handle %T", handle)
	}

	op, err := s.client.Operations.GetVideosOperation(ctx, job.op, nil)
	if err != nil {
		return production.PollResult{}, classifyCredentialErr(fmt.Errorf("failed to poll operation: %w", err))
	}
	job.op = op

	if !op.Done {
		return production.PollResult{}, nil
	}

	if len(op.Error) > 0 {
		errJSON, _ := json.Marshal(op.Error)
		return production.PollResult{Done: true, ErrMessage: string(errJSON)}, nil
	}

	if op.Response == nil {
		return production.PollResult{Done: true, ErrMessage: "completed operation carried no response"}, nil
	}

	if op.Response.RAIMediaFilteredCount > 0 {
		reasons := "unspecified"
		if len(op.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(op.Response.RAIMediaFilteredReasons, ", ")
		}
		log.Printf("[Veo] %d video(s) filtered by safety policy: %s", op.Response.RAIMediaFilteredCount, reasons)
		return production.PollResult{Done: true}, nil
	}

	if len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return production.PollResult{Done: true}, nil
	}

	video := op.Response.GeneratedVideos[0].Video
	return production.PollResult{
		Done: true,
		Asset: &production.VideoAsset{
			Ref: video,
			URI: video.URI,
		},
	}, nil
}

// Download resolves the asset's bytes from the remote file store.
func (s *VeoService) Download(ctx context.Context, asset *production.VideoAsset) ([]byte, error) {
	if asset == nil {
		return nil, fmt.Errorf("no asset to download")
	}
	video, ok := asset.Ref.(*genai.Video)
	if !ok || video == nil {
		return nil, fmt.Errorf("asset has no remote video reference")
	}
	if len(video.VideoBytes) > 0 {
		return video.VideoBytes, nil
	}

	data, err := s.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
	if err != nil {
		return nil, classifyCredentialErr(fmt.Errorf("failed to download generated video: %w", err))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded video is empty")
	}
	return data, nil
}

// classifyCredentialErr wraps key-rejection failures in the sentinel the
// orchestrator fails fast on; everything else passes through unchanged.
func classifyCredentialErr(err error) error {
	lower := strings.ToLower(err.Error())
	for _, p := range []string{"api key expired", "api key not valid", "api_key_invalid", "unauthenticated", "401"} {
		if strings.Contains(lower, p) {
			return fmt.Errorf("%w: %v", production.ErrCredentialExpired, err)
		}
	}
	return err
}
