// Package terminology manages the named dictionaries a service annotates
// with. Each terminology owns one built matcher engine and a bounded pool
// of sessions; loading happens in the background and concurrent loads of
// the same terminology are collapsed.
package terminology

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/matcher"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ner/termdict"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/metrics"
)

// Status is the lifecycle state of a terminology.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

const defaultPoolSize = 4

// Info is a point-in-time snapshot of one terminology.
type Info struct {
	Name     string
	Status   Status
	Terms    int
	Keys     int
	PoolSize int
	LoadedAt time.Time
	Err      error
}

type terminology struct {
	cfg      config.TerminologyConfig
	status   Status
	err      error
	engine   *matcher.Engine
	index    *termdict.Index
	sessions chan *matcher.Session
	loadedAt time.Time
}

// Manager holds the registered terminologies and their load state.
type Manager struct {
	mu          sync.RWMutex
	terms       map[string]*terminology
	defaultName string
	group       singleflight.Group
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewManager creates an empty Manager. defaultName marks the terminology
// annotate requests fall back to; it may be "" (meaning: all ready
// terminologies). m may be nil.
func NewManager(defaultName string, m *metrics.Metrics) *Manager {
	return &Manager{
		terms:       make(map[string]*terminology),
		defaultName: defaultName,
		metrics:     m,
		logger:      slog.Default().With("component", "terminology-manager"),
	}
}

// Add registers a terminology and starts loading it in the background.
// The call returns once the name is reserved; progress is observable
// through List and Get.
func (m *Manager) Add(cfg config.TerminologyConfig) error {
	if cfg.Name == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "terminology name is required")
	}
	m.mu.Lock()
	if _, exists := m.terms[cfg.Name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("adding %s: %w", cfg.Name, apperrors.ErrTerminologyExists)
	}
	m.terms[cfg.Name] = &terminology{cfg: cfg, status: StatusLoading}
	m.mu.Unlock()

	go m.build(context.Background(), cfg.Name, false)
	return nil
}

// Bootstrap registers the configured terminologies and builds them all,
// blocking until every one is ready. Workers that must not consume with
// cold dictionaries call this once at startup instead of Add. Caches are
// warmed first so parallel builds read prebuilt artifacts.
func (m *Manager) Bootstrap(ctx context.Context, cfgs []config.TerminologyConfig) error {
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return apperrors.New(apperrors.ErrInvalidInput, 400, "terminology name is required")
		}
		m.mu.Lock()
		if _, exists := m.terms[cfg.Name]; exists {
			m.mu.Unlock()
			return fmt.Errorf("adding %s: %w", cfg.Name, apperrors.ErrTerminologyExists)
		}
		m.terms[cfg.Name] = &terminology{cfg: cfg, status: StatusLoading}
		m.mu.Unlock()
	}
	if err := m.EnsureCaches(ctx); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, cfg := range cfgs {
		g.Go(func() error {
			return m.build(ctx, cfg.Name, false)
		})
	}
	return g.Wait()
}

// Reload rebuilds a terminology's engine from its source and swaps it in.
// The old engine keeps serving until the new one is ready; sessions
// already handed out finish on the engine they were created from.
// Concurrent reloads of the same terminology share one build.
func (m *Manager) Reload(ctx context.Context, name string, force bool) error {
	m.mu.RLock()
	_, exists := m.terms[name]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("reloading %s: %w", name, apperrors.ErrTerminologyNotFound)
	}
	return m.build(ctx, name, force)
}

// Remove drops a terminology. The default terminology cannot be removed.
func (m *Manager) Remove(name string) error {
	if name == m.defaultName && name != "" {
		return apperrors.Newf(apperrors.ErrInvalidInput, 403, "cannot remove default terminology %s", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.terms[name]; !exists {
		return fmt.Errorf("removing %s: %w", name, apperrors.ErrTerminologyNotFound)
	}
	delete(m.terms, name)
	if m.metrics != nil {
		m.metrics.TerminologiesReady.Set(float64(m.readyCountLocked()))
		m.metrics.DictionaryTermsLoaded.DeleteLabelValues(name)
	}
	m.logger.Info("terminology removed", "terminology", name)
	return nil
}

// Get returns a snapshot of one terminology.
func (m *Manager) Get(name string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, exists := m.terms[name]
	if !exists {
		return Info{}, fmt.Errorf("terminology %s: %w", name, apperrors.ErrTerminologyNotFound)
	}
	return m.infoLocked(name, t), nil
}

// List returns snapshots of every terminology, sorted by name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.terms))
	for name, t := range m.terms {
		infos = append(infos, m.infoLocked(name, t))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Resolve expands a requested terminology set: nil or empty means the
// default terminology, or every ready terminology when no default is
// configured. Every resolved name must exist. The result is sorted, so
// equivalent requests produce identical output and cache keys.
func (m *Manager) Resolve(requested []string) ([]string, error) {
	if len(requested) > 0 {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for _, name := range requested {
			if _, exists := m.terms[name]; !exists {
				return nil, fmt.Errorf("terminology %s: %w", name, apperrors.ErrTerminologyNotFound)
			}
		}
		names := append([]string(nil), requested...)
		sort.Strings(names)
		return names, nil
	}
	if m.defaultName != "" {
		return []string{m.defaultName}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.terms))
	for name, t := range m.terms {
		if t.status == StatusReady {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("resolving terminologies: %w", apperrors.ErrTerminologyLoading)
	}
	return names, nil
}

// Acquire borrows a session for the named terminology, blocking while the
// pool is exhausted. The returned release function resets the session and
// puts it back.
func (m *Manager) Acquire(ctx context.Context, name string) (*matcher.Session, func(), error) {
	m.mu.RLock()
	t, exists := m.terms[name]
	var status Status
	var loadErr error
	var pool chan *matcher.Session
	if exists {
		status = t.status
		loadErr = t.err
		pool = t.sessions
	}
	m.mu.RUnlock()

	if !exists {
		return nil, nil, fmt.Errorf("terminology %s: %w", name, apperrors.ErrTerminologyNotFound)
	}
	switch status {
	case StatusLoading:
		return nil, nil, fmt.Errorf("terminology %s: %w", name, apperrors.ErrTerminologyLoading)
	case StatusFailed:
		return nil, nil, fmt.Errorf("terminology %s: %w: %v", name, apperrors.ErrTerminologyFailed, loadErr)
	}

	select {
	case s := <-pool:
		release := func() {
			s.Reset()
			pool <- s
		}
		return s, release, nil
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("acquiring session for %s: %w", name, ctx.Err())
	}
}

// EnsureCaches makes sure every registered terminology has a valid cache
// artifact, without building indexes in memory. Workers call it once
// before fanning out.
func (m *Manager) EnsureCaches(ctx context.Context) error {
	m.mu.RLock()
	cfgs := make([]config.TerminologyConfig, 0, len(m.terms))
	for _, t := range m.terms {
		cfgs = append(cfgs, t.cfg)
	}
	m.mu.RUnlock()
	for _, cfg := range cfgs {
		if err := termdict.EnsureCache(ctx, dictConfig(cfg)); err != nil {
			return fmt.Errorf("ensuring cache for %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// build loads the dictionary and swaps the fresh engine in. It is keyed
// by name in a singleflight group so that racing loads do the work once.
func (m *Manager) build(ctx context.Context, name string, force bool) error {
	_, err, _ := m.group.Do(name, func() (any, error) {
		m.mu.RLock()
		t, exists := m.terms[name]
		var cfg config.TerminologyConfig
		if exists {
			cfg = t.cfg
		}
		m.mu.RUnlock()
		if !exists {
			return nil, fmt.Errorf("terminology %s: %w", name, apperrors.ErrTerminologyNotFound)
		}

		dcfg := dictConfig(cfg)
		if force {
			dcfg.ForceReload = true
		}

		start := time.Now()
		dict, err := termdict.Load(ctx, dcfg)
		if err != nil {
			m.setFailed(name, err)
			return nil, fmt.Errorf("loading terminology %s: %w", name, err)
		}

		var engine *matcher.Engine
		if cfg.AbbrevDetection {
			engine, err = matcher.NewLearning(dict, cfg.AbbrevPattern)
			if err != nil {
				m.setFailed(name, err)
				return nil, fmt.Errorf("building matcher for %s: %w", name, err)
			}
		} else {
			engine = matcher.New(dict)
		}

		size := cfg.PoolSize
		if size <= 0 {
			size = defaultPoolSize
		}
		pool := make(chan *matcher.Session, size)
		for i := 0; i < size; i++ {
			pool <- engine.NewSession()
		}

		m.mu.Lock()
		if t, exists := m.terms[name]; exists {
			t.status = StatusReady
			t.err = nil
			t.engine = engine
			t.index = dict.Index
			t.sessions = pool
			t.loadedAt = time.Now().UTC()
		}
		ready := m.readyCountLocked()
		m.mu.Unlock()

		elapsed := time.Since(start)
		if m.metrics != nil {
			m.metrics.DictionaryLoadDuration.WithLabelValues(name).Observe(elapsed.Seconds())
			m.metrics.DictionaryTermsLoaded.WithLabelValues(name).Set(float64(dict.Index.Rows()))
			m.metrics.TerminologiesReady.Set(float64(ready))
		}
		m.logger.Info("terminology ready",
			"terminology", name,
			"terms", dict.Index.Rows(),
			"keys", dict.Index.Terms(),
			"pool_size", size,
			"elapsed", elapsed,
		)
		return nil, nil
	})
	return err
}

func (m *Manager) setFailed(name string, err error) {
	m.mu.Lock()
	if t, exists := m.terms[name]; exists {
		// A reload failure on a ready terminology keeps the old engine
		// serving; only a first-time load marks the terminology failed.
		if t.engine == nil {
			t.status = StatusFailed
			t.err = err
		}
	}
	m.mu.Unlock()
	m.logger.Error("terminology load failed", "terminology", name, "error", err)
}

func (m *Manager) infoLocked(name string, t *terminology) Info {
	info := Info{
		Name:     name,
		Status:   t.status,
		PoolSize: cap(t.sessions),
		LoadedAt: t.loadedAt,
		Err:      t.err,
	}
	if t.index != nil {
		info.Terms = t.index.Rows()
		info.Keys = t.index.Terms()
	}
	return info
}

func (m *Manager) readyCountLocked() int {
	n := 0
	for _, t := range m.terms {
		if t.status == StatusReady {
			n++
		}
	}
	return n
}

// dictConfig maps the YAML terminology section onto the dictionary
// loader's config.
func dictConfig(cfg config.TerminologyConfig) termdict.Config {
	return termdict.Config{
		Path:            cfg.Path,
		Format:          cfg.Format,
		SkipHeader:      cfg.SkipHeader,
		ExtraFields:     len(cfg.ExtraFields),
		Normalize:       cfg.Normalize,
		TokenPattern:    cfg.TokenPattern,
		AbbrevDetection: cfg.AbbrevDetection,
		AbbrevPattern:   cfg.AbbrevPattern,
		Stopwords:       cfg.Stopwords,
		StopwordsFile:   cfg.StopwordsFile,
		CacheDir:        cfg.CacheDir,
		ForceReload:     cfg.ForceReload,
	}
}
