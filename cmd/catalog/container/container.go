package container

import (
	"context"
	"fmt"

	"github.com/lyzr/mediacatalog/cmd/catalog/repository"
	"github.com/lyzr/mediacatalog/cmd/catalog/service"
	"github.com/lyzr/mediacatalog/cmd/catalog/stream"
	"github.com/lyzr/mediacatalog/common/bootstrap"
	"github.com/lyzr/mediacatalog/common/config"
	"github.com/lyzr/mediacatalog/common/metrics"
	"github.com/lyzr/mediacatalog/common/ratelimit"
	"github.com/lyzr/mediacatalog/common/validation"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	IDs        repository.IdentityAllocator
	Catalog    repository.CatalogStore
	Payloads   repository.PayloadStore
	Engagement repository.EngagementRegistry

	// Services
	CatalogService *service.CatalogService
	Metrics        *metrics.Metrics

	// Hub is nil when the event queue is disabled
	Hub *stream.Hub

	// RateLimiter is nil unless rate limiting is enabled
	RateLimiter *ratelimit.RateLimiter
	UserPolicy  ratelimit.Policy

	closers []func() error
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	// Custom configs skip the check Load runs
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Container{Components: components}

	if err := c.initStores(ctx, cfg); err != nil {
		_ = c.Close()
		return nil, err
	}

	rule, err := validation.NewAdmissionRule(cfg.Catalog.AdmissionRule)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("entry admission rule: %w", err)
	}

	var events *service.EventPublisher
	if components.Queue != nil {
		events = service.NewEventPublisher(components.Queue, cfg.Queue.EventsTopic, components.Logger)
		c.Hub = stream.NewHub(components.Logger)
	}

	if components.Telemetry != nil {
		c.Metrics = metrics.New(components.Telemetry.Registry(), cfg.Service.Name)
	}

	c.CatalogService = service.NewCatalogService(service.Deps{
		IDs:        c.IDs,
		Catalog:    c.Catalog,
		Payloads:   c.Payloads,
		Engagement: c.Engagement,
		Rule:       rule,
		Events:     events,
		Metrics:    c.Metrics,
		BaseURL:    cfg.Service.PublicBaseURL,
	}, components.Logger)

	if cfg.RateLimit.Enabled && components.Redis != nil {
		c.RateLimiter = ratelimit.NewRateLimiter(components.Redis, components.Logger)
		c.UserPolicy = ratelimit.UserPolicyFromConfig(cfg.RateLimit)
	}

	components.Logger.WithFields(map[string]any{
		"catalog_backend":    cfg.Storage.CatalogBackend,
		"engagement_backend": cfg.Storage.EngagementBackend,
		"payload_backend":    cfg.Storage.PayloadBackend,
	}).Info("catalog container ready",
		"admission_rule", rule.Expression(),
		"rate_limit", c.RateLimiter != nil,
	)

	return c, nil
}

func (c *Container) initStores(ctx context.Context, cfg *config.Config) error {
	comp := c.Components

	switch cfg.Storage.CatalogBackend {
	case config.BackendPostgres:
		if comp.DB == nil {
			return fmt.Errorf("postgres catalog backend needs a database connection")
		}
		c.IDs = repository.NewSequenceAllocator(comp.DB)
		c.Catalog = repository.NewPostgresCatalogStore(comp.DB)
	case config.BackendBadger:
		if comp.KV == nil {
			return fmt.Errorf("badger catalog backend needs an open kv store")
		}
		ids, err := repository.NewBadgerAllocator(comp.KV.DB)
		if err != nil {
			return fmt.Errorf("badger id allocator: %w", err)
		}
		c.closers = append(c.closers, ids.Release)
		c.IDs = ids
		c.Catalog = repository.NewBadgerCatalogStore(comp.KV.DB)
	default:
		c.IDs = repository.NewAtomicAllocator()
		c.Catalog = repository.NewMemoryCatalogStore()
	}

	switch cfg.Storage.EngagementBackend {
	case config.BackendPostgres:
		if comp.DB == nil {
			return fmt.Errorf("postgres engagement backend needs a database connection")
		}
		c.Engagement = repository.NewPostgresEngagementRegistry(comp.DB)
	case config.BackendRedis:
		if comp.Redis == nil {
			return fmt.Errorf("redis engagement backend needs a redis connection")
		}
		c.Engagement = repository.NewRedisEngagementRegistry(comp.Redis)
	default:
		c.Engagement = repository.NewMemoryEngagementRegistry()
	}

	switch cfg.Storage.PayloadBackend {
	case config.BackendS3:
		client, err := repository.NewS3Client(ctx, cfg.Storage.S3Region, cfg.Storage.S3Endpoint)
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		c.Payloads = repository.NewS3PayloadStore(client, cfg.Storage.S3Bucket)
	case config.BackendFS:
		store, err := repository.NewFSPayloadStore(cfg.Storage.PayloadDir)
		if err != nil {
			return fmt.Errorf("payload directory: %w", err)
		}
		c.Payloads = store
	default:
		c.Payloads = repository.NewMemoryPayloadStore()
	}

	return nil
}

// Run feeds catalog events to the stream hub and blocks until ctx is cancelled
func (c *Container) Run(ctx context.Context) error {
	if c.Hub == nil {
		return nil
	}

	topic := c.Components.Config.Queue.EventsTopic
	if err := c.Hub.Subscribe(ctx, c.Components.Queue, topic); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	c.Hub.Run(ctx)
	return nil
}

// Close releases resources owned by the container. Components are shut down separately.
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
