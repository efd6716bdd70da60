package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed project lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Spawner creates processes. *process.Coordinator satisfies it.
type Spawner interface {
	Spawn(ctx context.Context, req domain.SpawnRequest) (domain.SpawnResult, error)
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates project access. Unused locks are dropped by
// reference counting.
type Manager struct {
	store ports.ProjectStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.ProjectStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves a project.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Project, error) {
	var project *domain.Project
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		project, err = m.store.Load(ctx, id)
		return err
	})
	return project, err
}

// LoadOrCreate loads a project, creating and persisting it when missing.
func (m *Manager) LoadOrCreate(ctx context.Context, id, name string) (*domain.Project, error) {
	var project *domain.Project
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		project, err = m.loadOrCreate(ctx, id, name)
		return err
	})
	return project, err
}

func (m *Manager) loadOrCreate(ctx context.Context, id, name string) (*domain.Project, error) {
	project, err := m.store.Load(ctx, id)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, domain.ErrProjectNotFound) {
		return nil, fmt.Errorf("failed to check project existence: %w", err)
	}

	if name == "" {
		name = id
	}
	project = domain.NewProject(id, name)
	if err := m.store.Save(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// Save persists a project and bumps its update time.
func (m *Manager) Save(ctx context.Context, project *domain.Project) error {
	if project == nil || project.ID == "" {
		return fmt.Errorf("%w: project id required", domain.ErrInvalidRequest)
	}
	return m.WithLock(ctx, project.ID, func(ctx context.Context) error {
		project.UpdatedAt = time.Now().UTC()
		return m.store.Save(ctx, project)
	})
}

// Delete removes a project.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying project store.
func (m *Manager) Store() ports.ProjectStore {
	return m.store
}

// EnsureProcess returns the project with a process attached, spawning one
// with req when the project has none yet. Concurrent callers for the same
// project spawn at most once.
func (m *Manager) EnsureProcess(ctx context.Context, id string, spawner Spawner, req domain.SpawnRequest) (*domain.Project, error) {
	var project *domain.Project
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		project, err = m.loadOrCreate(ctx, id, "")
		if err != nil {
			return err
		}
		if project.Process != "" {
			return nil
		}

		res, spawnErr := spawner.Spawn(ctx, req)
		if res.Process == "" {
			if spawnErr == nil {
				spawnErr = domain.ErrNoProcessRef
			}
			return fmt.Errorf("spawn for project %s: %w", id, spawnErr)
		}
		project.Process = res.Process
		project.Readiness = res.Readiness
		project.Module = req.Module
		if project.Module == "" {
			project.Module = domain.DefaultModule
		}
		project.UpdatedAt = time.Now().UTC()

		// The process exists on the network even if the caller has gone away.
		if err := m.store.Save(context.WithoutCancel(ctx), project); err != nil {
			m.logger.Error("process spawned but project not saved",
				"project_id", id,
				"process", string(res.Process),
				"err", err,
			)
			return fmt.Errorf("save project %s: %w", id, err)
		}
		if spawnErr != nil {
			m.logger.Warn("spawn reported an error after creating the process",
				"project_id", id,
				"process", string(res.Process),
				"err", spawnErr,
			)
			return fmt.Errorf("spawn for project %s: %w", id, spawnErr)
		}
		m.logger.Info("project process attached", "project_id", id, "process", string(res.Process))
		return nil
	})
	return project, err
}

// WithLock runs fn while holding the project lock.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "project:"+id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"project_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
