package backend

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"paperbot/internal/config"
	"paperbot/internal/domain"
)

// Factory builds and caches backends from named model profiles.
type Factory struct {
	profiles    map[string]config.ModelProfile
	defaultName string
	timeout     time.Duration
	logger      *slog.Logger
	cache       map[string]domain.Backend
	mu          sync.RWMutex
}

// NewFactory creates a factory over the given profile set. defaultName is
// used when Get is called with an empty name.
func NewFactory(profiles map[string]config.ModelProfile, defaultName string, timeout time.Duration, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		profiles:    profiles,
		defaultName: defaultName,
		timeout:     timeout,
		logger:      logger,
		cache:       make(map[string]domain.Backend),
	}
}

// Get returns the backend for the named profile, building it on first use.
// Uses double-check locking so concurrent callers share one instance.
func (f *Factory) Get(name string) (domain.Backend, error) {
	if name == "" {
		name = f.defaultName
	}

	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	profile, ok := f.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown model profile: %s", name)
	}
	b, err := Build(profile, f.timeout, f.logger)
	if err != nil {
		return nil, err
	}
	f.cache[name] = b
	return b, nil
}

// Default returns the backend for the configured default profile.
func (f *Factory) Default() (domain.Backend, error) {
	return f.Get("")
}

// Build constructs the tagged variant a profile names. Every profile yields
// one concrete backend; there is no nullable-client path.
func Build(profile config.ModelProfile, timeout time.Duration, logger *slog.Logger) (domain.Backend, error) {
	switch profile.Kind {
	case "workspace":
		w, err := NewWorkspace(WorkspaceConfig{
			BaseURL: profile.BaseURL,
			APIKey:  profile.APIKey,
			Slug:    profile.Workspace,
			Timeout: timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
		}
		return w, nil
	case "direct":
		return NewDirect(DirectConfig{
			APIKey:  profile.APIKey,
			APIBase: profile.BaseURL,
			Model:   profile.Model,
			Timeout: timeout,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("profile %s: unknown backend kind %q", profile.Name, profile.Kind)
	}
}
