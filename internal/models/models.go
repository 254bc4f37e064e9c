package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums

// GreetingStatus models the lifecycle of a greeting as an explicit state
// machine: authoring → producing → reviewing → completed, with failed as a
// terminal error state and reviewing → producing allowed for regeneration.
type GreetingStatus string

const (
	GreetingStatusAuthoring GreetingStatus = "authoring"
	GreetingStatusProducing GreetingStatus = "producing"
	GreetingStatusReviewing GreetingStatus = "reviewing"
	GreetingStatusCompleted GreetingStatus = "completed"
	GreetingStatusFailed    GreetingStatus = "failed"
)

// statusTransitions enumerates the allowed edges of the greeting state
// machine. Anything not listed is rejected by CanTransition.
var statusTransitions = map[GreetingStatus][]GreetingStatus{
	GreetingStatusAuthoring: {GreetingStatusProducing},
	GreetingStatusProducing: {GreetingStatusReviewing, GreetingStatusFailed},
	GreetingStatusReviewing: {GreetingStatusCompleted, GreetingStatusProducing},
	GreetingStatusCompleted: {GreetingStatusReviewing},
	GreetingStatusFailed:    {GreetingStatusProducing},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s GreetingStatus) CanTransition(next GreetingStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

// Greeting is the persisted record for one video greeting. Asset URLs are
// opaque pass-through values: they may point at cloud object storage or at
// ephemeral local objects depending on deployment, and the playback layer
// treats both identically.
type Greeting struct {
	ID            uuid.UUID      `json:"id"`
	RecipientName *string        `json:"recipient_name,omitempty"`
	Occasion      *string        `json:"occasion,omitempty"`
	Message       string         `json:"message"`
	VoiceName     *string        `json:"voice_name,omitempty"` // Narration voice override
	Extended      bool           `json:"extended"`             // User asked for a longer video
	Status        GreetingStatus `json:"status"`

	// Optional reference imagery forwarded to the generator with tagged
	// roles: subject anchors who/what appears, style anchors how it looks.
	SubjectImageURL *string `json:"subject_image_url,omitempty"`
	StyleImageURL   *string `json:"style_image_url,omitempty"`

	// Produced assets. VoiceURL is absent for silent greetings.
	VideoURL     *string  `json:"video_url,omitempty"`
	VoiceURL     *string  `json:"voice_url,omitempty"`
	MusicURL     *string  `json:"music_url,omitempty"`
	VideoSeconds *float64 `json:"video_seconds,omitempty"`
	Partial      bool     `json:"partial"` // Production stopped short of the planned duration

	// Trim window persisted alongside the record. TrimEnd == 0 means
	// "unset, defaults to full video duration".
	TrimStart float64 `json:"trim_start"`
	TrimEnd   float64 `json:"trim_end"`
	FadeOut   bool    `json:"fade_out"`

	ErrorCode    *string   `json:"error_code,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Job struct {
	ID           uuid.UUID  `json:"id"`
	GreetingID   uuid.UUID  `json:"greeting_id"`
	Type         string     `json:"type"`
	Status       JobStatus  `json:"status"`
	Attempts     int        `json:"attempts"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DTOs for API responses

type CreateGreetingRequest struct {
	Message         string  `json:"message"`
	RecipientName   *string `json:"recipient_name,omitempty"`
	Occasion        *string `json:"occasion,omitempty"`
	VoiceName       *string `json:"voice_name,omitempty"`
	Extended        *bool   `json:"extended,omitempty"`
	SubjectImageURL *string `json:"subject_image_url,omitempty"`
	StyleImageURL   *string `json:"style_image_url,omitempty"`
	MusicURL        *string `json:"music_url,omitempty"` // Default stock track when absent
}

type CreateGreetingResponse struct {
	GreetingID uuid.UUID      `json:"greeting_id"`
	Status     GreetingStatus `json:"status"`
}

// UpdateTrimRequest carries a trim-window edit. Nil fields are left
// untouched; an edit that would violate the minimum separation is rejected
// and the stored bounds do not move.
type UpdateTrimRequest struct {
	TrimStart *float64 `json:"trim_start,omitempty"`
	TrimEnd   *float64 `json:"trim_end,omitempty"`
	FadeOut   *bool    `json:"fade_out,omitempty"`
}

type GreetingSummary struct {
	ID            uuid.UUID      `json:"id"`
	RecipientName *string        `json:"recipient_name,omitempty"`
	Occasion      *string        `json:"occasion,omitempty"`
	Message       string         `json:"message"`
	Status        GreetingStatus `json:"status"`
	VideoURL      *string        `json:"video_url,omitempty"`
	ErrorCode     *string        `json:"error_code,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type ListGreetingsResponse struct {
	Greetings []GreetingSummary `json:"greetings"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}
