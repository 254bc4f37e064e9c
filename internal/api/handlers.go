package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dlnapm/egreetz/internal/audio"
	"github.com/dlnapm/egreetz/internal/db"
	"github.com/dlnapm/egreetz/internal/models"
	"github.com/dlnapm/egreetz/internal/playback"
	"github.com/dlnapm/egreetz/internal/queue"
	"github.com/dlnapm/egreetz/internal/storage"
)

type Handler struct {
	db         *db.DB
	queue      *queue.Queue
	store      storage.Store
	httpClient *http.Client // Fetches caller-supplied external music for previews
}

func NewHandler(database *db.DB, q *queue.Queue, store storage.Store) *Handler {
	return &Handler{
		db:         database,
		queue:      q,
		store:      store,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// CreateGreeting handles POST /v1/greetings
func (h *Handler) CreateGreeting(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGreetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	extended := false
	if req.Extended != nil {
		extended = *req.Extended
	}

	greeting := &models.Greeting{
		ID:              uuid.New(),
		RecipientName:   req.RecipientName,
		Occasion:        req.Occasion,
		Message:         req.Message,
		VoiceName:       req.VoiceName,
		Extended:        extended,
		Status:          models.GreetingStatusAuthoring,
		SubjectImageURL: req.SubjectImageURL,
		StyleImageURL:   req.StyleImageURL,
		MusicURL:        req.MusicURL,
		FadeOut:         true,
	}

	if err := h.db.CreateGreeting(r.Context(), greeting); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create greeting")
		return
	}

	if err := h.enqueueProduction(r.Context(), greeting.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue production")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateGreetingResponse{
		GreetingID: greeting.ID,
		Status:     greeting.Status,
	})
}

// RegenerateGreeting handles POST /v1/greetings/{id}/produce — re-runs
// production for a greeting in reviewing or failed state.
func (h *Handler) RegenerateGreeting(w http.ResponseWriter, r *http.Request) {
	greetingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid greeting ID")
		return
	}

	greeting, err := h.db.GetGreeting(r.Context(), greetingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Greeting not found")
		return
	}

	if !greeting.Status.CanTransition(models.GreetingStatusProducing) {
		respondError(w, http.StatusConflict, "Greeting cannot be produced from status "+string(greeting.Status))
		return
	}

	if err := h.enqueueProduction(r.Context(), greetingID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue production")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateGreetingResponse{
		GreetingID: greetingID,
		Status:     greeting.Status,
	})
}

func (h *Handler) enqueueProduction(ctx context.Context, greetingID uuid.UUID) error {
	jobID := uuid.New()
	job := &models.Job{
		ID:         jobID,
		GreetingID: greetingID,
		Type:       "produce_greeting",
		Status:     models.JobStatusQueued,
	}

	if err := h.db.CreateJob(ctx, job); err != nil {
		return err
	}
	return h.queue.EnqueueProduceGreeting(ctx, greetingID, jobID)
}

// ListGreetings handles GET /v1/greetings
// Query params:
//   - status: filter by greeting status (authoring, producing, reviewing, completed, failed)
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListGreetings(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		switch models.GreetingStatus(statusFilter) {
		case models.GreetingStatusAuthoring, models.GreetingStatusProducing,
			models.GreetingStatusReviewing, models.GreetingStatusCompleted,
			models.GreetingStatusFailed:
			// valid
		default:
			respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: authoring, producing, reviewing, completed, failed")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountGreetings(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count greetings")
		return
	}

	greetings, err := h.db.ListGreetings(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list greetings")
		return
	}

	respondJSON(w, http.StatusOK, models.ListGreetingsResponse{
		Greetings: greetings,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// GetGreeting handles GET /v1/greetings/{id}
func (h *Handler) GetGreeting(w http.ResponseWriter, r *http.Request) {
	greetingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid greeting ID")
		return
	}

	greeting, err := h.db.GetGreeting(r.Context(), greetingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Greeting not found")
		return
	}

	respondJSON(w, http.StatusOK, greeting)
}

// UpdateTrim handles PATCH /v1/greetings/{id}/trim. Edits that would pull
// the bounds closer than the minimum separation are rejected whole; the
// stored window never moves on a rejected request.
func (h *Handler) UpdateTrim(w http.ResponseWriter, r *http.Request) {
	greetingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid greeting ID")
		return
	}

	var req models.UpdateTrimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	greeting, err := h.db.GetGreeting(r.Context(), greetingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Greeting not found")
		return
	}

	trim := playback.TrimWindow{
		Start:   greeting.TrimStart,
		End:     greeting.TrimEnd,
		FadeOut: greeting.FadeOut,
	}
	if greeting.VideoSeconds != nil {
		trim.ClampToDuration(*greeting.VideoSeconds)
	}

	if req.TrimStart != nil && !trim.SetStart(*req.TrimStart) {
		respondError(w, http.StatusUnprocessableEntity, "trim_start too close to trim_end")
		return
	}
	if req.TrimEnd != nil && !trim.SetEnd(*req.TrimEnd) {
		respondError(w, http.StatusUnprocessableEntity, "trim_end too close to trim_start")
		return
	}
	if req.FadeOut != nil {
		trim.FadeOut = *req.FadeOut
	}

	if err := h.db.UpdateGreetingTrim(r.Context(), greetingID, trim.Start, trim.End, trim.FadeOut); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update trim")
		return
	}

	greeting.TrimStart = trim.Start
	greeting.TrimEnd = trim.End
	greeting.FadeOut = trim.FadeOut
	respondJSON(w, http.StatusOK, greeting)
}

// CompleteGreeting handles POST /v1/greetings/{id}/complete — the user
// signs off on the reviewed result.
func (h *Handler) CompleteGreeting(w http.ResponseWriter, r *http.Request) {
	greetingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid greeting ID")
		return
	}

	greeting, err := h.db.GetGreeting(r.Context(), greetingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Greeting not found")
		return
	}

	if err := h.db.UpdateGreetingStatus(r.Context(), greetingID, greeting.Status, models.GreetingStatusCompleted); err != nil {
		respondError(w, http.StatusConflict, "Greeting cannot be completed from status "+string(greeting.Status))
		return
	}

	greeting.Status = models.GreetingStatusCompleted
	respondJSON(w, http.StatusOK, greeting)
}

// PreviewMix handles GET /v1/greetings/{id}/preview.wav — renders the
// trimmed, gain-staged narration + music mix offline and serves it as one
// WAV file, matching exactly what live playback sounds like.
func (h *Handler) PreviewMix(w http.ResponseWriter, r *http.Request) {
	greetingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid greeting ID")
		return
	}

	greeting, err := h.db.GetGreeting(r.Context(), greetingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Greeting not found")
		return
	}

	if greeting.VideoURL == nil {
		respondError(w, http.StatusConflict, "Greeting has no produced assets yet")
		return
	}

	// Either track may be missing or undecodable; the preview simply
	// renders whatever remains, like the live engine does.
	var narration, music *audio.Buffer
	if greeting.VoiceURL != nil {
		if data, err := h.store.Download(r.Context(), storage.ObjectPath(greetingID, "voice.wav")); err == nil {
			if buf, err := audio.DecodeNarration(data); err == nil {
				narration = buf
			}
		} else {
			log.Printf("[Preview] narration fetch failed for %s: %v", greetingID, err)
		}
	}
	if greeting.MusicURL != nil {
		if data, err := h.fetchMusic(r.Context(), greetingID, *greeting.MusicURL); err == nil {
			if buf, err := audio.DecodeMusic(data); err == nil {
				music = buf
			} else {
				log.Printf("[Preview] music decode failed for %s: %v", greetingID, err)
			}
		} else {
			log.Printf("[Preview] music fetch failed for %s: %v", greetingID, err)
		}
	}

	trim := playback.TrimWindow{
		Start:   greeting.TrimStart,
		End:     greeting.TrimEnd,
		FadeOut: greeting.FadeOut,
	}
	videoSeconds := 0.0
	if greeting.VideoSeconds != nil {
		videoSeconds = *greeting.VideoSeconds
	}

	mix := playback.RenderMix(narration, music, trim, videoSeconds)
	wav := audio.WrapPCM(mix.PCM, mix.SampleRate, mix.Channels)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// fetchMusic resolves the music bed: the canonical per-greeting object when
// it exists, otherwise the caller-supplied external URL.
func (h *Handler) fetchMusic(ctx context.Context, greetingID uuid.UUID, musicURL string) ([]byte, error) {
	if data, err := h.store.Download(ctx, storage.ObjectPath(greetingID, "music.wav")); err == nil {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", musicURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("music download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetGreetingJobs handles GET /v1/greetings/{id}/debug/jobs
func (h *Handler) GetGreetingJobs(w http.ResponseWriter, r *http.Request) {
	greetingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid greeting ID")
		return
	}

	jobs, err := h.db.GetGreetingJobs(r.Context(), greetingID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get jobs")
		return
	}

	respondJSON(w, http.StatusOK, jobs)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
