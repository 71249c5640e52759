package store

import (
	"context"
	"errors"
	"time"
)

type (
	RecordID int64
	TermID   int64
	MediaID  int64
)

// Metadata keys shared by every backend.
const (
	MetaExternalID = "_external_id"
	MetaLegacyID   = "_tokko_id"
)

var (
	// ErrRejected is returned when the store refuses a write (constraint
	// violation, unknown post type, missing owner).
	ErrRejected = errors.New("store rejected write")
	ErrNotFound = errors.New("not found")
)

type NewRecord struct {
	PostType string
	Title    string
	Body     string
	Status   string
	// Meta is written together with the record, so the natural key is
	// never missing on a record that exists.
	Meta map[string]string
}

type RecordUpdate struct {
	Title string
	Body  string
}

type Record struct {
	ID            RecordID
	PostType      string
	Title         string
	Body          string
	Status        string
	Meta          map[string]string
	Terms         map[string][]TermID
	FeaturedMedia MediaID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Term struct {
	ID       TermID
	Taxonomy string
	Name     string
	Slug     string
}

type NewMedia struct {
	SourceURL   string
	Filename    string
	ContentType string
	Data        []byte
}

type Media struct {
	ID          MediaID
	Owner       RecordID
	SourceURL   string
	Filename    string
	ContentType string
	Size        int
	CreatedAt   time.Time
}

// Store is the destination collaborator the sync pipeline writes into.
type Store interface {
	PostTypeExists(ctx context.Context, postType string) (bool, error)

	FindByMeta(ctx context.Context, postType, key, value string) (RecordID, bool, error)
	CreateRecord(ctx context.Context, in NewRecord) (RecordID, error)
	UpdateRecord(ctx context.Context, id RecordID, in RecordUpdate) error
	SetMeta(ctx context.Context, id RecordID, key, value string) error

	GetOrCreateTerm(ctx context.Context, taxonomy, name string) (TermID, error)
	AssignTerms(ctx context.Context, id RecordID, taxonomy string, terms []TermID) error

	FindMediaBySourceURL(ctx context.Context, sourceURL string) (MediaID, bool, error)
	CreateMedia(ctx context.Context, owner RecordID, in NewMedia) (MediaID, error)
	SetFeaturedMedia(ctx context.Context, id RecordID, media MediaID) error
}

// RunRecorder is implemented by stores that keep a history of sync runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

type Run struct {
	ID         string
	PostType   string
	StartedAt  time.Time
	FinishedAt time.Time
	Imported   int
	Updated    int
	Errors     []string
}
