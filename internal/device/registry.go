package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the bike metadata registry: a Repository fronted by an
// in-memory cache.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// UpsertDevice and DeleteDevice. All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new bike registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all bikes from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading bikes: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].DeepCopy()
	}

	r.logger.Info("bike registry cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a bike by id. The result is a copy.
// Returns ErrDeviceNotFound if the bike is unknown.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices returns all cached bikes sorted by name then id.
func (r *Registry) ListDevices() []Device {
	r.cacheMu.RLock()
	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// UpsertDevice records the bike's current metadata. It reports whether
// anything was written; an unchanged record is left alone.
func (r *Registry) UpsertDevice(ctx context.Context, device *Device) (bool, error) {
	if err := ValidateDevice(device); err != nil {
		return false, err
	}

	r.cacheMu.RLock()
	existing, ok := r.cache[device.ID]
	r.cacheMu.RUnlock()

	if ok {
		if existing.SameMetadata(device) {
			return false, nil
		}
		device.CreatedAt = existing.CreatedAt
	}

	if err := r.repo.Upsert(ctx, device); err != nil {
		return false, err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	if ok {
		r.logger.Info("bike metadata updated", "id", device.ID, "name", device.Name)
	} else {
		r.logger.Info("bike registered", "id", device.ID, "name", device.Name)
	}
	return true, nil
}

// DeleteDevice removes a bike from the registry.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("bike removed", "id", id)
	return nil
}

// GetDeviceCount returns the number of cached bikes.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
