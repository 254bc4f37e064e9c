package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dlnapm/egreetz/internal/models"
)

func (db *DB) CreateGreeting(ctx context.Context, g *models.Greeting) error {
	query := `
		INSERT INTO greetings (
			id, recipient_name, occasion, message, voice_name, extended,
			status, subject_image_url, style_image_url, music_url,
			trim_start, trim_end, fade_out
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		g.ID, g.RecipientName, g.Occasion, g.Message, g.VoiceName, g.Extended,
		g.Status, g.SubjectImageURL, g.StyleImageURL, g.MusicURL,
		g.TrimStart, g.TrimEnd, g.FadeOut,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
}

const greetingColumns = `
	id, recipient_name, occasion, message, voice_name, extended, status,
	subject_image_url, style_image_url,
	video_url, voice_url, music_url, video_seconds, partial,
	trim_start, trim_end, fade_out,
	error_code, error_message, created_at, updated_at
`

func scanGreeting(row interface{ Scan(...any) error }) (*models.Greeting, error) {
	g := &models.Greeting{}
	err := row.Scan(
		&g.ID, &g.RecipientName, &g.Occasion, &g.Message, &g.VoiceName,
		&g.Extended, &g.Status,
		&g.SubjectImageURL, &g.StyleImageURL,
		&g.VideoURL, &g.VoiceURL, &g.MusicURL, &g.VideoSeconds, &g.Partial,
		&g.TrimStart, &g.TrimEnd, &g.FadeOut,
		&g.ErrorCode, &g.ErrorMessage, &g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

func (db *DB) GetGreeting(ctx context.Context, id uuid.UUID) (*models.Greeting, error) {
	query := `SELECT ` + greetingColumns + ` FROM greetings WHERE id = $1`

	g, err := scanGreeting(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("greeting not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get greeting: %w", err)
	}
	return g, nil
}

// ListGreetings returns greetings ordered by creation date (newest first).
// Supports optional status filter, limit, and offset for pagination.
func (db *DB) ListGreetings(ctx context.Context, status string, limit, offset int) ([]models.GreetingSummary, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseSelect := `
		SELECT id, recipient_name, occasion, message, status,
			video_url, error_code, created_at, updated_at
		FROM greetings
	`

	if status != "" {
		query := baseSelect + ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = db.QueryContext(ctx, query, status, limit, offset)
	} else {
		query := baseSelect + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = db.QueryContext(ctx, query, limit, offset)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list greetings: %w", err)
	}
	defer rows.Close()

	var greetings []models.GreetingSummary
	for rows.Next() {
		var g models.GreetingSummary
		if err := rows.Scan(
			&g.ID, &g.RecipientName, &g.Occasion, &g.Message, &g.Status,
			&g.VideoURL, &g.ErrorCode, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan greeting: %w", err)
		}
		greetings = append(greetings, g)
	}

	return greetings, nil
}

// CountGreetings returns the total number of greetings, optionally filtered by status.
func (db *DB) CountGreetings(ctx context.Context, status string) (int, error) {
	var count int
	if status != "" {
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM greetings WHERE status = $1`, status).Scan(&count)
		return count, err
	}
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM greetings`).Scan(&count)
	return count, err
}

// UpdateGreetingStatus moves the greeting along the lifecycle state machine.
// Illegal edges are rejected before touching the row.
func (db *DB) UpdateGreetingStatus(ctx context.Context, id uuid.UUID, from, to models.GreetingStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	query := `UPDATE greetings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("greeting %s no longer in status %s", id, from)
	}
	return nil
}

// SetGreetingAssets records the produced asset URLs and the initial trim
// window. TrimEnd of 0 stays the "full duration" placeholder when the video
// length is unknown.
func (db *DB) SetGreetingAssets(ctx context.Context, id uuid.UUID, videoURL string, voiceURL, musicURL *string, videoSeconds float64, partial bool) error {
	query := `
		UPDATE greetings
		SET video_url = $1, voice_url = $2, music_url = $3,
			video_seconds = $4, partial = $5,
			trim_end = CASE WHEN trim_end = 0 THEN $4 ELSE trim_end END,
			updated_at = NOW()
		WHERE id = $6
	`
	_, err := db.ExecContext(ctx, query, videoURL, voiceURL, musicURL, videoSeconds, partial, id)
	return err
}

// UpdateGreetingTrim persists an accepted trim edit.
func (db *DB) UpdateGreetingTrim(ctx context.Context, id uuid.UUID, trimStart, trimEnd float64, fadeOut bool) error {
	query := `
		UPDATE greetings
		SET trim_start = $1, trim_end = $2, fade_out = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, trimStart, trimEnd, fadeOut, id)
	return err
}

func (db *DB) UpdateGreetingError(ctx context.Context, id uuid.UUID, errorCode, errorMessage string) error {
	query := `
		UPDATE greetings
		SET status = $1, error_code = $2, error_message = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.GreetingStatusFailed, errorCode, errorMessage, id)
	return err
}
