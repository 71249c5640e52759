package syncer

import (
	"errors"
	"fmt"

	"github.com/yourorg/tokko-sync/tokko"
)

// Configuration errors abort a run before any work is done.
var (
	ErrMissingAPIKey = fmt.Errorf("configuration error: %w", tokko.ErrMissingAPIKey)
	ErrNoPostType    = errors.New("configuration error: no destination post type available")
)

var (
	ErrSyncInProgress    = errors.New("a sync is already running")
	ErrMissingExternalID = errors.New("missing external id")
	ErrNoProperties      = errors.New("no properties fetched")
)

// RecordError is a failure confined to one source record.
type RecordError struct {
	ExternalID string
	Err        error
}

func (e *RecordError) Error() string {
	if e.ExternalID == "" {
		return fmt.Sprintf("Property: %v", e.Err)
	}
	return fmt.Sprintf("Property %s: %v", e.ExternalID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func recordError(externalID string, err error) error {
	var re *RecordError
	if errors.As(err, &re) {
		return err
	}
	return &RecordError{ExternalID: externalID, Err: err}
}
