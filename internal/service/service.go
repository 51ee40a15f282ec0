// Package service composes the store, loading coordinator, context pool,
// batcher, and task queue into the daemon's single entry point. The HTTP
// layer and the CLI talk to a Service; the components never talk to each
// other except through it.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/batch"
	"inferd/internal/engine"
	"inferd/internal/manager"
	"inferd/internal/pool"
	"inferd/internal/source"
	"inferd/internal/store"
	"inferd/internal/taskq"
	"inferd/pkg/types"
)

// Config carries the tunables the daemon wires in from its config file.
type Config struct {
	Store          *store.Store
	Engine         engine.Engine
	Source         source.Source // optional; Pull fails without one
	DefaultModel   string
	ResidencyLimit int
	BatchSize      int
	BatchWindow    time.Duration
	PoolSize       int
	MaxTasks       int
	PruneInterval  time.Duration
	Preload        []string
	Logger         zerolog.Logger
}

// Service owns one batcher per model id, created lazily on first inference.
type Service struct {
	store  *store.Store
	engine engine.Engine
	src    source.Source
	mgr    *manager.Manager
	pool   *pool.Pool
	tasks  *taskq.Queue
	log    zerolog.Logger

	batchMu  sync.Mutex
	batchers map[string]*batch.Batcher

	defaultModel string
	batchSize    int
	batchWindow  time.Duration
	preload      []string

	pruneInterval time.Duration
	pruneStop     chan struct{}
	pruneDone     chan struct{}

	startTime time.Time
}

// New wires the components together. Call Start to kick off background
// maintenance and Close to shut everything down.
func New(cfg Config) *Service {
	s := &Service{
		store:         cfg.Store,
		engine:        cfg.Engine,
		src:           cfg.Source,
		pool:          pool.New(cfg.PoolSize),
		log:           cfg.Logger,
		batchers:      make(map[string]*batch.Batcher),
		defaultModel:  cfg.DefaultModel,
		batchSize:     cfg.BatchSize,
		batchWindow:   cfg.BatchWindow,
		preload:       cfg.Preload,
		pruneInterval: cfg.PruneInterval,
		pruneStop:     make(chan struct{}),
		pruneDone:     make(chan struct{}),
		startTime:     time.Now(),
	}
	s.tasks = taskq.New(cfg.MaxTasks, taskq.SinkFunc(func(err error) {
		s.log.Error().Err(err).Msg("background task failed")
	}))
	s.mgr = manager.New(manager.Config{
		Store:          cfg.Store,
		Engine:         cfg.Engine,
		DefaultModel:   cfg.DefaultModel,
		ResidencyLimit: cfg.ResidencyLimit,
		Publisher:      logPublisher{log: cfg.Logger},
	})
	return s
}

// Start submits preload work and begins periodic quota pruning. Both run
// through the bounded task queue so they never starve foreground requests.
func (s *Service) Start() {
	for _, id := range s.preload {
		id := id
		s.tasks.Submit(func(ctx context.Context) error {
			if _, err := s.mgr.AcquireReady(ctx, id); err != nil {
				return fmt.Errorf("preload %s: %w", id, err)
			}
			return nil
		})
	}
	go s.pruneLoop()
}

func (s *Service) pruneLoop() {
	defer close(s.pruneDone)
	if s.pruneInterval <= 0 {
		return
	}
	t := time.NewTicker(s.pruneInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.tasks.Submit(func(ctx context.Context) error {
				s.store.Prune()
				return nil
			})
		case <-s.pruneStop:
			return
		}
	}
}

// Close drains batchers and background work, then releases loaded models.
func (s *Service) Close() {
	close(s.pruneStop)
	<-s.pruneDone
	s.batchMu.Lock()
	bs := make([]*batch.Batcher, 0, len(s.batchers))
	for _, b := range s.batchers {
		bs = append(bs, b)
	}
	s.batchMu.Unlock()
	for _, b := range bs {
		b.Close()
	}
	s.tasks.Close()
	s.mgr.Close()
}

// Manager exposes the loading coordinator for memory-pressure callers.
func (s *Service) Manager() *manager.Manager { return s.mgr }

// Ready reports whether the daemon can serve requests.
func (s *Service) Ready() bool { return s.store != nil && s.engine != nil }

// ListModels returns stored records sorted by id.
func (s *Service) ListModels() []types.ModelRecord {
	recs := s.store.ListAll()
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs
}

// GetModel returns one stored record without recording an access.
func (s *Service) GetModel(id string) (types.ModelRecord, bool) {
	return s.store.Get(id)
}

// AddModel stores artifact bytes under id, evicting under quota pressure.
func (s *Service) AddModel(ctx context.Context, rec types.ModelRecord, artifact []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Put(rec, artifact); err != nil {
		return err
	}
	s.log.Info().Str("model", rec.ID).Int("bytes", len(artifact)).Msg("model stored")
	return nil
}

// Pull fetches id from the configured artifact source and stores it.
func (s *Service) Pull(ctx context.Context, id string) error {
	if s.src == nil {
		return fmt.Errorf("no artifact source configured")
	}
	b, meta, err := s.src.Fetch(ctx, id)
	if err != nil {
		return err
	}
	rec := types.ModelRecord{
		ID:           id,
		DisplayName:  meta.DisplayName,
		Capabilities: meta.Capabilities,
	}
	return s.AddModel(ctx, rec, b)
}

// RemoveModel deletes the disk record and releases any in-memory residency.
func (s *Service) RemoveModel(id string) error {
	// Not resident is fine; the disk record is authoritative.
	_ = s.mgr.Release(id)
	return s.store.Remove(id)
}

// Status assembles the daemon-wide status view.
func (s *Service) Status() types.StatusResponse {
	ps := s.pool.Statistics()
	return types.StatusResponse{
		Residents:      s.mgr.Residents(),
		QuotaBytes:     s.store.QuotaBytes(),
		UsedBytes:      s.store.CurrentUsage(),
		StoredModels:   s.store.Count(),
		Pool:           types.PoolStatus{Free: ps.Free, InUse: ps.InUse, Total: ps.Total},
		QueuedTasks:    s.tasks.Len(),
		EvictionsTotal: s.store.EvictionsTotal(),
		LoadsTotal:     s.mgr.LoadsTotal(),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		LastError:      s.mgr.LastError(),
	}
}

// logPublisher forwards coordinator events to the structured log.
type logPublisher struct {
	log zerolog.Logger
}

func (p logPublisher) Publish(e manager.Event) {
	ev := p.log.Debug().Str("event", e.Name).Str("model", e.ModelID)
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("coordinator event")
}
