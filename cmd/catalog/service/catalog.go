package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/cmd/catalog/repository"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/metrics"
	"github.com/lyzr/mediacatalog/common/validation"
)

// Deps are the collaborators of CatalogService. Rule, Events and Metrics
// are optional.
type Deps struct {
	IDs        repository.IdentityAllocator
	Catalog    repository.CatalogStore
	Payloads   repository.PayloadStore
	Engagement repository.EngagementRegistry
	Rule       *validation.AdmissionRule
	Events     *EventPublisher
	Metrics    *metrics.Metrics
	BaseURL    string
}

// CatalogService coordinates the stores behind the catalog API
type CatalogService struct {
	ids        repository.IdentityAllocator
	catalog    repository.CatalogStore
	payloads   repository.PayloadStore
	engagement repository.EngagementRegistry
	rule       *validation.AdmissionRule
	patches    *validation.PatchValidator
	events     *EventPublisher
	metrics    *metrics.Metrics
	baseURL    string

	// Serializes payload binds and detail updates per entry
	writes *keyedLocks
	log    *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(deps Deps, log *logger.Logger) *CatalogService {
	return &CatalogService{
		ids:        deps.IDs,
		catalog:    deps.Catalog,
		payloads:   deps.Payloads,
		engagement: deps.Engagement,
		rule:       deps.Rule,
		patches:    validation.NewPatchValidator(),
		events:     deps.Events,
		metrics:    deps.Metrics,
		baseURL:    deps.BaseURL,
		writes:     newKeyedLocks(),
		log:        log,
	}
}

// CreateEntry allocates an id and stores a new entry with zero likes
func (s *CatalogService) CreateEntry(ctx context.Context, title string, duration int64) (*models.Entry, error) {
	if err := s.admit(title, duration); err != nil {
		return nil, err
	}

	id, err := s.ids.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate id: %w", err)
	}

	// The record exists before the entry is visible, so a listed entry
	// can always be liked
	if err := s.engagement.Register(ctx, id); err != nil {
		return nil, fmt.Errorf("register engagement: %w", err)
	}

	stored, err := s.catalog.Insert(ctx, &models.Entry{
		ID:       id,
		Title:    title,
		Duration: duration,
	})
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	s.metrics.EntryCreated()
	s.events.Publish(ctx, models.NewEvent(models.EventEntryCreated, id))
	s.log.WithContext(ctx).WithEntryID(id).Info("entry created", "title", title, "duration", duration)

	return s.present(stored, 0), nil
}

// GetEntry returns the entry with its locator and like count
func (s *CatalogService) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	entry, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	likes, err := s.engagement.Count(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	return s.present(entry, likes), nil
}

// ListEntries returns every entry in ascending id order
func (s *CatalogService) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	entries, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	return s.presentAll(ctx, entries)
}

// SearchByTitle returns entries whose title matches exactly
func (s *CatalogService) SearchByTitle(ctx context.Context, title string) ([]*models.Entry, error) {
	entries, err := s.catalog.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	return s.presentAll(ctx, entries)
}

// SearchByDurationLessThan returns entries shorter than threshold seconds
func (s *CatalogService) SearchByDurationLessThan(ctx context.Context, threshold int64) ([]*models.Entry, error) {
	entries, err := s.catalog.FindByDurationLessThan(ctx, threshold)
	if err != nil {
		return nil, err
	}
	return s.presentAll(ctx, entries)
}

// BindPayload stores the payload for an existing entry and records its
// content type. A failed save leaves the entry and any prior payload as they were.
func (s *CatalogService) BindPayload(ctx context.Context, id int64, contentType string, r io.Reader) (*models.Status, error) {
	log := s.log.WithContext(ctx).WithEntryID(id)

	// Reject before consuming any of the stream
	if _, err := s.catalog.Get(ctx, id); err != nil {
		return nil, err
	}

	unlock := s.writes.Lock(id)
	defer unlock()

	size, err := s.payloads.Save(ctx, id, contentType, r)
	if err != nil {
		s.metrics.PayloadBound(metrics.ResultError, 0)
		log.Warn("payload save failed", "error", err)
		return nil, err
	}

	if err := s.catalog.UpdateContentType(ctx, id, contentType); err != nil {
		s.metrics.PayloadBound(metrics.ResultError, 0)
		return nil, err
	}

	s.metrics.PayloadBound(metrics.ResultOK, size)

	evt := models.NewEvent(models.EventPayloadBound, id)
	evt.Bytes = &size
	s.events.Publish(ctx, evt)

	log.Info("payload bound", "content_type", contentType, "bytes", size)

	return &models.Status{State: models.StateReady}, nil
}

// OpenPayload opens the stored payload of an existing entry. Its content
// type is the one saved with the bytes. Callers must close Body.
func (s *CatalogService) OpenPayload(ctx context.Context, id int64) (*repository.Payload, error) {
	if _, err := s.catalog.Get(ctx, id); err != nil {
		return nil, err
	}

	has, err := s.payloads.Has(ctx, id)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, models.ErrNotFound
	}

	return s.payloads.Open(ctx, id)
}

// ReadPayload writes the stored payload bytes to w and returns their content type
func (s *CatalogService) ReadPayload(ctx context.Context, id int64, w io.Writer) (string, int64, error) {
	p, err := s.OpenPayload(ctx, id)
	if err != nil {
		return "", 0, err
	}
	defer p.Body.Close()

	n, err := io.Copy(w, p.Body)
	if err != nil {
		return p.ContentType, n, fmt.Errorf("%w: read payload: %w", models.ErrStorageFailure, err)
	}
	return p.ContentType, n, nil
}

// Like records caller's like and returns the updated entry
func (s *CatalogService) Like(ctx context.Context, id int64, caller string) (*models.Entry, error) {
	return s.engage(ctx, id, caller, "like", models.EventEntryLiked, s.engagement.Like)
}

// Unlike withdraws caller's like and returns the updated entry
func (s *CatalogService) Unlike(ctx context.Context, id int64, caller string) (*models.Entry, error) {
	return s.engage(ctx, id, caller, "unlike", models.EventEntryUnliked, s.engagement.Unlike)
}

func (s *CatalogService) engage(
	ctx context.Context,
	id int64,
	caller, op string,
	eventType models.EventType,
	apply func(context.Context, int64, string) (int64, error),
) (*models.Entry, error) {
	if caller == "" {
		return nil, fmt.Errorf("%w: caller is required", models.ErrInvalidEntry)
	}

	entry, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	likes, err := apply(ctx, id, caller)
	if err != nil {
		result := metrics.ResultError
		if errors.Is(err, models.ErrAlreadyLiked) || errors.Is(err, models.ErrNotLiked) {
			result = metrics.ResultRejected
		}
		s.metrics.EngagementOp(op, result)
		return nil, err
	}

	s.metrics.EngagementOp(op, metrics.ResultOK)

	evt := models.NewEvent(eventType, id)
	evt.Caller = caller
	evt.Likes = &likes
	s.events.Publish(ctx, evt)

	s.log.WithContext(ctx).WithEntryID(id).WithCaller(caller).Debug("engagement updated", "operation", op, "likes", likes)

	return s.present(entry, likes), nil
}

// LikedBy returns the callers who like the entry, sorted ascending
func (s *CatalogService) LikedBy(ctx context.Context, id int64) ([]string, error) {
	if _, err := s.catalog.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.engagement.LikedBy(ctx, id)
}

// UpdateDetails applies an RFC 7386 merge patch to the entry's title and duration
func (s *CatalogService) UpdateDetails(ctx context.Context, id int64, patch []byte) (*models.Entry, error) {
	if err := s.patches.ValidateMergePatch(patch); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidEntry, err)
	}

	unlock := s.writes.Lock(id)
	defer unlock()

	current, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	original, err := json.Marshal(models.EntryDetails{Title: current.Title, Duration: current.Duration})
	if err != nil {
		return nil, fmt.Errorf("encode entry details: %w", err)
	}

	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: apply patch: %w", models.ErrInvalidEntry, err)
	}

	var details models.EntryDetails
	if err := json.Unmarshal(merged, &details); err != nil {
		return nil, fmt.Errorf("%w: patched entry: %w", models.ErrInvalidEntry, err)
	}

	if err := s.admit(details.Title, details.Duration); err != nil {
		return nil, err
	}

	if err := s.catalog.UpdateDetails(ctx, id, details.Title, details.Duration); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, models.NewEvent(models.EventEntryUpdated, id))
	s.log.WithContext(ctx).WithEntryID(id).Info("entry updated", "title", details.Title, "duration", details.Duration)

	return s.GetEntry(ctx, id)
}

func (s *CatalogService) admit(title string, duration int64) error {
	if err := s.rule.Admit(title, duration); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidEntry, err)
	}
	return nil
}

// present fills the derived fields
func (s *CatalogService) present(entry *models.Entry, likes int64) *models.Entry {
	out := entry.Clone()
	out.DataURL = models.PayloadLocator(s.baseURL, entry.ID)
	out.Likes = likes
	return out
}

func (s *CatalogService) presentAll(ctx context.Context, entries []*models.Entry) ([]*models.Entry, error) {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	counts, err := s.engagement.Counts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Entry, len(entries))
	for i, e := range entries {
		out[i] = s.present(e, counts[e.ID])
	}
	return out, nil
}
