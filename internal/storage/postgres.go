package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photoevents/internal/config"
	"github.com/your-org/photoevents/internal/models"
)

// ErrInvalidTransition is returned when a status update is rejected by the
// forward-only processing state machine.
var ErrInvalidTransition = errors.New("invalid processing status transition")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			date TIMESTAMPTZ NOT NULL,
			access_code TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS photos (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			filename TEXT NOT NULL,
			original_name TEXT NOT NULL DEFAULT '',
			object_key TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			size BIGINT NOT NULL DEFAULT 0,
			mimetype TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			uploaded_by TEXT NOT NULL DEFAULT '',
			faces_detected INT NOT NULL DEFAULT 0,
			face_model TEXT NOT NULL DEFAULT '',
			processing_status TEXT NOT NULL DEFAULT 'pending',
			processing_error TEXT NOT NULL DEFAULT '',
			processing_started_at TIMESTAMPTZ,
			processing_completed_at TIMESTAMPTZ,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS photo_embeddings (
			photo_id UUID NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
			face_index INT NOT NULL,
			embedding vector NOT NULL,
			PRIMARY KEY (photo_id, face_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_event_uploaded ON photos(event_id, uploaded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_status ON photos(processing_status)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	ev.ID = uuid.New()
	return s.pool.QueryRow(ctx,
		`INSERT INTO events (id, name, description, date, access_code)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		ev.ID, ev.Name, ev.Description, ev.Date, ev.AccessCode,
	).Scan(&ev.CreatedAt, &ev.UpdatedAt)
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, date, access_code, created_at, updated_at
		 FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.Name, &ev.Description, &ev.Date, &ev.AccessCode, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, date, access_code, created_at, updated_at
		 FROM events ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Description, &ev.Date,
			&ev.AccessCode, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// --- Photos ---

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.ProcessingStatus = models.StatusPending
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, event_id, filename, original_name, object_key, url,
		                     size, mimetype, description, tags, uploaded_by, processing_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING uploaded_at`,
		p.ID, p.EventID, p.Filename, p.OriginalName, p.ObjectKey, p.URL,
		p.Size, p.Mimetype, p.Description, p.Tags, p.UploadedBy, p.ProcessingStatus,
	).Scan(&p.UploadedAt)
}

const photoColumns = `id, event_id, filename, original_name, object_key, url,
	size, mimetype, description, tags, uploaded_by, faces_detected, face_model,
	processing_status, processing_error, processing_started_at,
	processing_completed_at, uploaded_at`

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	p := &models.Photo{}
	err := row.Scan(&p.ID, &p.EventID, &p.Filename, &p.OriginalName, &p.ObjectKey,
		&p.URL, &p.Size, &p.Mimetype, &p.Description, &p.Tags, &p.UploadedBy,
		&p.FacesDetected, &p.FaceModel, &p.ProcessingStatus, &p.ProcessingError,
		&p.ProcessingStartedAt, &p.ProcessingCompletedAt, &p.UploadedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}

	embeddings, err := s.loadEmbeddings(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Embeddings = embeddings
	return p, nil
}

func (s *PostgresStore) ListPhotosByEvent(ctx context.Context, eventID uuid.UUID, limit, offset int) ([]models.Photo, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM photos WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count photos: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE event_id = $1
		 ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, total, nil
}

func (s *PostgresStore) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("photo not found")
	}
	return nil
}

func (s *PostgresStore) loadEmbeddings(ctx context.Context, photoID uuid.UUID) ([][]float32, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT embedding FROM photo_embeddings WHERE photo_id = $1 ORDER BY face_index`,
		photoID)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings [][]float32
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		embeddings = append(embeddings, vec.Slice())
	}
	return embeddings, nil
}

// --- Processing status transitions ---

// explainTransition names why a status update guarded by the state machine
// matched no rows: the photo is gone, or its current status permits no move
// to next.
func (s *PostgresStore) explainTransition(ctx context.Context, id uuid.UUID, next models.ProcessingStatus) error {
	var current models.ProcessingStatus
	err := s.pool.QueryRow(ctx,
		`SELECT processing_status FROM photos WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return fmt.Errorf("%w: photo %s no longer exists", ErrInvalidTransition, id)
	}
	if !current.CanTransition(next) {
		return fmt.Errorf("%w: %s cannot become %s", ErrInvalidTransition, current, next)
	}
	return ErrInvalidTransition
}

// MarkProcessing moves a photo from pending to processing. Re-marking a photo
// that is already processing is allowed so queue redeliveries are idempotent.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE photos
		 SET processing_status = $1, processing_started_at = COALESCE(processing_started_at, now())
		 WHERE id = $2 AND processing_status IN ($3, $1)`,
		models.StatusProcessing, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainTransition(ctx, id, models.StatusProcessing)
	}
	return nil
}

// MarkCompleted stores the encoding results and moves the photo to completed.
func (s *PostgresStore) MarkCompleted(ctx context.Context, id uuid.UUID, embeddings [][]float32, model models.FaceModel, facesDetected int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE photos
		 SET processing_status = $1, face_model = $2, faces_detected = $3,
		     processing_error = '', processing_completed_at = now()
		 WHERE id = $4 AND processing_status = $5`,
		models.StatusCompleted, model, facesDetected, id, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainTransition(ctx, id, models.StatusCompleted)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM photo_embeddings WHERE photo_id = $1`, id); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}
	for i, emb := range embeddings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO photo_embeddings (photo_id, face_index, embedding) VALUES ($1, $2, $3)`,
			id, i, pgvector.NewVector(emb)); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// MarkFailed records a terminal failure. Only a processing photo can fail.
func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE photos
		 SET processing_status = $1, processing_error = $2, processing_completed_at = now()
		 WHERE id = $3 AND processing_status = $4`,
		models.StatusFailed, reason, id, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainTransition(ctx, id, models.StatusFailed)
	}
	return nil
}

// --- Search ---

// Candidate pairs a completed photo with one of its stored face vectors.
type Candidate struct {
	Photo     models.Photo
	Embedding []float32
}

// ListSearchCandidates loads up to limit completed photos (optionally scoped
// to an event) together with their embeddings, newest first. One Candidate is
// returned per stored face so multi-face photos can match on any face.
func (s *PostgresStore) ListSearchCandidates(ctx context.Context, eventID *uuid.UUID, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + photoColumns + ` FROM photos
		WHERE processing_status = $1
		  AND EXISTS (SELECT 1 FROM photo_embeddings pe WHERE pe.photo_id = photos.id)`
	args := []interface{}{models.StatusCompleted}

	if eventID != nil {
		query += ` AND event_id = $2 ORDER BY uploaded_at DESC LIMIT $3`
		args = append(args, *eventID, limit)
	} else {
		query += ` ORDER BY uploaded_at DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		photos = append(photos, *p)
	}
	rows.Close()

	var candidates []Candidate
	for i := range photos {
		embeddings, err := s.loadEmbeddings(ctx, photos[i].ID)
		if err != nil {
			return nil, err
		}
		for _, emb := range embeddings {
			candidates = append(candidates, Candidate{Photo: photos[i], Embedding: emb})
		}
	}
	return candidates, nil
}

// --- Cleanup ---

// DeleteStalePending removes photos wedged in a non-terminal status longer
// than ttl and returns their object keys so the caller can remove the stored
// files. Pending photos age from upload (queue was degraded, job never ran);
// processing photos age from when work started (worker died mid-job after the
// delivery budget drained). The ttl far exceeds the queue's redelivery
// horizon, so no live job can be swept.
func (s *PostgresStore) DeleteStalePending(ctx context.Context, ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	rows, err := s.pool.Query(ctx,
		`DELETE FROM photos
		 WHERE (processing_status = $1 AND uploaded_at < $3)
		    OR (processing_status = $2 AND processing_started_at < $3)
		 RETURNING object_key`,
		models.StatusPending, models.StatusProcessing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete stale pending: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ListObjectKeys returns the object keys of all photos, for orphan detection.
func (s *PostgresStore) ListObjectKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT object_key FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("list object keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys[key] = true
	}
	return keys, nil
}
