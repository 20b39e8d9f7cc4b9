// Package formstore keeps the authoritative in-memory copy of each loan
// application, mirrors it to a Redis draft cache on every change and writes
// it to the repository when committed.
package formstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/models"

	"github.com/redis/go-redis/v9"
)

// Repository is the durable record of applications.
type Repository interface {
	Create(ctx context.Context, app *models.LoanApplication) error
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	Save(ctx context.Context, app *models.LoanApplication) error
}

type entry struct {
	app     *models.LoanApplication
	version uint64
	synced  uint64
}

type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	repo   Repository
	cache  redis.Cmdable
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func New(repo Repository, cache redis.Cmdable, ttl time.Duration, prefix string, log logger.Logger) *Store {
	return &Store{
		entries: map[string]*entry{},
		repo:    repo,
		cache:   cache,
		ttl:     ttl,
		prefix:  prefix,
		logger:  log,
	}
}

func (s *Store) cacheKey(id string) string {
	return fmt.Sprintf("%s:draft:%s", s.prefix, id)
}

// Create records a new application remotely, then keeps and caches it.
func (s *Store) Create(ctx context.Context, app *models.LoanApplication) error {
	if err := s.repo.Create(ctx, app); err != nil {
		return errors.NewDatabaseWriteFailedError("create_application", err)
	}
	cp := app.Clone()
	s.mu.Lock()
	s.entries[app.ID] = &entry{app: cp}
	s.mu.Unlock()

	s.writeCache(ctx, cp)
	return nil
}

// Get returns a copy of the application. Memory is consulted first, then the
// repository; the draft cache is only read when the repository fails.
func (s *Store) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.app.Clone(), nil
}

func (s *Store) load(ctx context.Context, id string) (*entry, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	app, err := s.repo.Get(ctx, id)
	dirty := false
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeApplicationNotFound) {
			return nil, err
		}
		cached, cacheErr := s.readCache(ctx, id)
		if cacheErr != nil || cached == nil {
			return nil, errors.NewDatabaseReadFailedError("get_application", err)
		}
		metrics.DraftCacheFallbacks.Inc()
		s.logger.Warn("Serving application from draft cache", map[string]interface{}{
			"applicationId": id,
			"error":         err,
		})
		app, dirty = cached, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[id]; ok {
		return existing, nil
	}
	e = &entry{app: app}
	if dirty {
		e.version = 1
	}
	s.entries[id] = e
	return e, nil
}

// Update applies fn to a working copy and keeps it when fn succeeds. The
// result is mirrored to the draft cache; cache failures are only logged.
func (s *Store) Update(ctx context.Context, id string, fn func(app *models.LoanApplication) error) (*models.LoanApplication, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	e := s.entries[id]
	work := e.app.Clone()
	if err := fn(work); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	e.app = work
	e.version++
	out := work.Clone()
	s.mu.Unlock()

	s.writeCache(ctx, out)
	return out, nil
}

// Apply mutates the in-memory copy with a change that has already been
// written to the repository. Pending uncommitted changes stay pending.
func (s *Store) Apply(ctx context.Context, id string, fn func(app *models.LoanApplication)) (*models.LoanApplication, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	e := s.entries[id]
	work := e.app.Clone()
	fn(work)
	e.app = work
	wasSynced := e.version == e.synced
	e.version++
	if wasSynced {
		e.synced = e.version
	}
	out := work.Clone()
	s.mu.Unlock()

	s.writeCache(ctx, out)
	return out, nil
}

// Commit writes the in-memory copy to the repository. On failure memory and
// cache are left as they are and a retryable error is returned.
func (s *Store) Commit(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return errors.NewApplicationNotFoundError(id)
	}
	snapshot := e.app.Clone()
	version := e.version
	s.mu.Unlock()

	if err := s.repo.Save(ctx, snapshot); err != nil {
		if errors.HasCode(err, errors.ErrCodeApplicationNotFound) {
			return err
		}
		return errors.NewDatabaseWriteFailedError("save_application", err)
	}

	s.mu.Lock()
	if version > e.synced {
		e.synced = version
	}
	s.mu.Unlock()
	return nil
}

// Dirty reports whether the in-memory copy has changes not yet committed.
func (s *Store) Dirty(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.version > e.synced
}

func (s *Store) writeCache(ctx context.Context, app *models.LoanApplication) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(app)
	if err != nil {
		s.logger.Error("Failed to encode draft", map[string]interface{}{"applicationId": app.ID, "error": err})
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(app.ID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("Draft cache write failed", map[string]interface{}{
			"applicationId": app.ID,
			"error":         errors.NewCacheFailedError(err),
		})
	}
}

func (s *Store) readCache(ctx context.Context, id string) (*models.LoanApplication, error) {
	if s.cache == nil {
		return nil, nil
	}
	data, err := s.cache.Get(ctx, s.cacheKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var app models.LoanApplication
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, err
	}
	return &app, nil
}
