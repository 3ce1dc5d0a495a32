// /internal/storage/storage.go
package storage

import (
	"context"

	"github.com/keshon/datastore"
)

// Storage persists engine state through the JSON-file datastore: atomic
// writes and periodic auto-save come from the library, which stores values
// as raw JSON and unmarshals straight into the caller's type on Get.
type Storage struct {
	ds     *datastore.DataStore
	cancel context.CancelFunc
}

// New opens the store at filePath. The auto-save goroutine runs on a child
// of ctx so Close can always stop it, even under context.Background().
func New(ctx context.Context, filePath string) (*Storage, error) {
	ctx, cancel := context.WithCancel(ctx)
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Storage{ds: ds, cancel: cancel}, nil
}

// Close stops the auto-save goroutine and performs the final save. Safe to
// call more than once.
func (s *Storage) Close() error {
	s.cancel()
	return s.ds.Close()
}

// Get loads the value under key into out (a pointer). Returns false when the
// key does not exist.
func (s *Storage) Get(key string, out any) (bool, error) {
	return s.ds.Get(key, out)
}

// Set stores value under key. The datastore flushes on its own schedule.
func (s *Storage) Set(key string, value any) error {
	return s.ds.Set(key, value)
}

// Delete removes the key. Missing keys are a no-op.
func (s *Storage) Delete(key string) error {
	return s.ds.Delete(key)
}
