package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dlnapm/egreetz/internal/audio"
	"github.com/dlnapm/egreetz/internal/db"
	"github.com/dlnapm/egreetz/internal/models"
	"github.com/dlnapm/egreetz/internal/production"
	"github.com/dlnapm/egreetz/internal/queue"
	"github.com/dlnapm/egreetz/internal/services"
	"github.com/dlnapm/egreetz/internal/storage"
)

// Planner is the optional greeting-plan step; nil means raw messages go
// straight to production.
type Planner interface {
	GeneratePlan(ctx context.Context, message string) (*services.GreetingPlan, error)
}

type Worker struct {
	db               *db.DB
	queue            *queue.Queue
	store            storage.Store
	planner          Planner // Optional: nil when no OpenAI key is configured
	orch             *production.Orchestrator
	defaultMusicPath string        // Path to the stock music bed (empty = no music)
	httpClient       *http.Client  // Fetches caller-supplied reference images
	uploadSem        chan struct{} // Limits concurrent storage uploads to prevent congestion
}

func New(
	database *db.DB,
	q *queue.Queue,
	store storage.Store,
	planner Planner,
	orch *production.Orchestrator,
	defaultMusicPath string,
) *Worker {
	return &Worker{
		db:               database,
		queue:            q,
		store:            store,
		planner:          planner,
		orch:             orch,
		defaultMusicPath: defaultMusicPath,
		httpClient:       &http.Client{Timeout: 60 * time.Second},
		uploadSem:        make(chan struct{}, 4),
	}
}

// uploadWithLimit wraps an upload call with a semaphore so concurrent
// productions don't flood the object store.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
		// Acquired slot
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start begins processing production jobs.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueProduceGreeting, w.handleProduceGreeting)
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing job %s (type: %s, greeting: %s)", job.ID, job.Type, job.GreetingID)

			if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
				log.Printf("Failed to update job status: %v", err)
			}

			if err := handler(ctx, job); err != nil {
				log.Printf("Job %s failed: %v", job.ID, err)
				w.db.UpdateJobError(ctx, job.ID, err.Error())
			} else {
				log.Printf("Job %s completed successfully", job.ID)
				w.db.UpdateJobStatus(ctx, job.ID, models.JobStatusSucceeded)
			}
		}
	}
}

// handleProduceGreeting runs one greeting through the full pipeline: plan,
// generate video + narration concurrently, store assets, hand the greeting
// to review.
func (w *Worker) handleProduceGreeting(ctx context.Context, job *queue.Job) error {
	g, err := w.db.GetGreeting(ctx, job.GreetingID)
	if err != nil {
		return fmt.Errorf("failed to get greeting: %w", err)
	}

	if g.Status != models.GreetingStatusProducing {
		if err := w.db.UpdateGreetingStatus(ctx, g.ID, g.Status, models.GreetingStatusProducing); err != nil {
			return fmt.Errorf("failed to move greeting into production: %w", err)
		}
	}

	params := w.planParams(ctx, g)
	params.References = w.fetchReferences(ctx, g)

	result, err := w.orch.Produce(ctx, params)
	if err != nil {
		w.db.UpdateGreetingError(ctx, g.ID, errorCode(err), err.Error())
		return fmt.Errorf("production failed: %w", err)
	}

	videoURL, voiceURL, musicURL, err := w.storeAssets(ctx, g, result)
	if err != nil {
		w.db.UpdateGreetingError(ctx, g.ID, "storage_failed", err.Error())
		return err
	}

	if err := w.db.SetGreetingAssets(ctx, g.ID, videoURL, voiceURL, musicURL, result.Video.Seconds, result.Partial); err != nil {
		return fmt.Errorf("failed to record assets: %w", err)
	}

	return w.db.UpdateGreetingStatus(ctx, g.ID, models.GreetingStatusProducing, models.GreetingStatusReviewing)
}

// planParams resolves the script and scene for production. The planner is
// best-effort: on any failure the raw message serves as both.
func (w *Worker) planParams(ctx context.Context, g *models.Greeting) production.ScriptParams {
	params := production.ScriptParams{
		Script:   g.Message,
		Extended: g.Extended,
	}
	if g.VoiceName != nil {
		params.VoiceName = *g.VoiceName
	}

	if g.Occasion != nil && *g.Occasion != "" {
		params.Environment = fmt.Sprintf("A scene suited to: %s.", *g.Occasion)
	}

	if w.planner == nil {
		return params
	}

	plan, err := w.planner.GeneratePlan(ctx, planMessage(g))
	if err != nil {
		log.Printf("Greeting %s: planning failed, using raw message: %v", g.ID, err)
		return params
	}

	params.Script = plan.Script
	params.Environment = plan.Environment
	return params
}

// planMessage folds the optional recipient and occasion into the planner input.
func planMessage(g *models.Greeting) string {
	msg := g.Message
	if g.RecipientName != nil && *g.RecipientName != "" {
		msg = fmt.Sprintf("For %s: %s", *g.RecipientName, msg)
	}
	if g.Occasion != nil && *g.Occasion != "" {
		msg = fmt.Sprintf("%s (occasion: %s)", msg, *g.Occasion)
	}
	return msg
}

// fetchReferences downloads the optional subject/style images. Fetch failures
// degrade to generating without that reference.
func (w *Worker) fetchReferences(ctx context.Context, g *models.Greeting) []production.ReferenceImage {
	var refs []production.ReferenceImage

	for _, src := range []struct {
		url  *string
		role production.ReferenceRole
	}{
		{g.SubjectImageURL, production.RoleSubject},
		{g.StyleImageURL, production.RoleStyle},
	} {
		if src.url == nil || *src.url == "" {
			continue
		}
		data, mimeType, err := w.fetchImage(ctx, *src.url)
		if err != nil {
			log.Printf("Greeting %s: could not fetch %s reference, continuing without: %v", g.ID, src.role, err)
			continue
		}
		refs = append(refs, production.ReferenceImage{Data: data, MIMEType: mimeType, Role: src.role})
	}

	return refs
}

func (w *Worker) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}

// storeAssets uploads the produced video, the narration wrapped as WAV, and
// the default music bed when the greeting didn't bring its own.
func (w *Worker) storeAssets(ctx context.Context, g *models.Greeting, result *production.Result) (videoURL string, voiceURL, musicURL *string, err error) {
	videoPath := storage.ObjectPath(g.ID, "video.mp4")
	if err := w.uploadWithLimit(ctx, videoPath, func() error {
		return w.store.Upload(ctx, videoPath, result.Video.Bytes, "video/mp4")
	}); err != nil {
		return "", nil, nil, fmt.Errorf("failed to upload video: %w", err)
	}
	videoURL = w.store.PublicURL(videoPath)

	if len(result.NarrationPCM) > 0 {
		wav := audio.WrapPCM(result.NarrationPCM, audio.NarrationSampleRate, 1)
		voicePath := storage.ObjectPath(g.ID, "voice.wav")
		if err := w.uploadWithLimit(ctx, voicePath, func() error {
			return w.store.Upload(ctx, voicePath, wav, "audio/wav")
		}); err != nil {
			return "", nil, nil, fmt.Errorf("failed to upload narration: %w", err)
		}
		u := w.store.PublicURL(voicePath)
		voiceURL = &u
	}

	musicURL = g.MusicURL
	if musicURL == nil && w.defaultMusicPath != "" {
		data, err := os.ReadFile(w.defaultMusicPath)
		if err != nil {
			// The music bed is an enhancement; production stands without it.
			log.Printf("Greeting %s: could not read default music, continuing without: %v", g.ID, err)
		} else {
			musicPath := storage.ObjectPath(g.ID, "music.wav")
			if err := w.uploadWithLimit(ctx, musicPath, func() error {
				return w.store.Upload(ctx, musicPath, data, "audio/wav")
			}); err != nil {
				log.Printf("Greeting %s: could not upload default music, continuing without: %v", g.ID, err)
			} else {
				u := w.store.PublicURL(musicPath)
				musicURL = &u
			}
		}
	}

	return videoURL, voiceURL, musicURL, nil
}

// errorCode maps production failures to stable API error codes. The
// credential case is split out so clients can prompt for re-authentication.
func errorCode(err error) string {
	switch {
	case errors.Is(err, production.ErrCredentialExpired):
		return "credential_expired"
	case errors.Is(err, production.ErrNoAsset):
		return "no_asset"
	default:
		return "production_failed"
	}
}
