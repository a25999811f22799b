package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/pKV/lib/middleware"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

var (
	// ErrNotInitialized is returned by Run before Init succeeded.
	ErrNotInitialized = errors.New("store: not initialized")
	// ErrAlreadyInitialized is returned by Init and Use after Init succeeded.
	ErrAlreadyInitialized = errors.New("store: already initialized")
)

// Store wires a provider with an ordered set of middlewares and runs payloads through them.
//
// Thread-safety: Use and Init must not be called concurrently with each other. Once Init returned,
// Run and the typed helpers are safe for concurrent use. Run holds no lock while middlewares
// execute, so middlewares may issue their own payloads through the store.
type Store struct {
	name        string
	provider    provider.Provider
	registry    *middleware.Registry
	initialized atomic.Bool
}

var _ middleware.Store = (*Store)(nil)

// New creates a store named name backed by p.
func New(name string, p provider.Provider) *Store {
	return &Store{
		name:     name,
		provider: p,
		registry: middleware.NewRegistry(),
	}
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Provider returns the backing provider.
func (s *Store) Provider() provider.Provider { return s.provider }

// Middlewares returns the registry of the store.
func (s *Store) Middlewares() *middleware.Registry { return s.registry }

// Use registers middlewares in order. It fails for duplicate names and after Init.
func (s *Store) Use(mws ...middleware.Middleware) error {
	if s.initialized.Load() {
		return ErrAlreadyInitialized
	}
	for _, m := range mws {
		if err := s.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Init runs the migration gate of the provider and then the one of every middleware in
// registration order. It stops at the first failure; the store stays uninitialized then.
func (s *Store) Init(ctx context.Context) error {
	if s.initialized.Load() {
		return ErrAlreadyInitialized
	}
	if _, err := s.provider.Init(ctx, provider.Context{Name: s.name}); err != nil {
		return err
	}
	log.Debugf("%s: provider %s initialized", s.name, s.provider.Name())

	// middlewares may run payloads through the store while they initialize
	s.initialized.Store(true)
	for _, m := range s.registry.List() {
		if _, err := m.Init(ctx, middleware.Context{Name: s.name, Store: s}); err != nil {
			s.initialized.Store(false)
			return err
		}
		log.Debugf("%s: middleware %s initialized", s.name, m.Name())
	}
	log.Infof("%s: initialized with %d middlewares", s.name, s.registry.Size())
	return nil
}

// Initialized reports whether Init succeeded.
func (s *Store) Initialized() bool { return s.initialized.Load() }

// --------------------------------------------------------------------------
// Pipeline
// --------------------------------------------------------------------------

// Run passes payload through the pre provider middlewares, the provider and the post provider
// middlewares of its method. The provider is skipped if a middleware set
// provider.MetadataSkipProvider. The pipeline stops as soon as a stage returns an error or the
// payload holds a data error; the returned payload is the last one a stage returned.
func (s *Store) Run(ctx context.Context, payload provider.Payload) (provider.Payload, error) {
	if !s.initialized.Load() {
		return payload, ErrNotInitialized
	}
	if err := provider.Validate(payload); err != nil {
		return payload, err
	}
	method := payload.Base().Method

	payload, stop, err := s.runMiddlewares(ctx, payload, provider.TriggerPreProvider, s.registry.GetPreMiddlewares(method))
	if stop {
		return payload, err
	}

	if !payload.Base().SkipProvider() {
		out, err := provider.Dispatch(ctx, s.provider, payload)
		if err != nil {
			return out, fmt.Errorf("%s: %s: %w", s.provider.Name(), method, err)
		}
		payload = out
		if payload.Base().Failed() {
			log.Debugf("%s: %s failed: %v", s.name, method, payload.Base().Err())
			return payload, nil
		}
	}

	payload, _, err = s.runMiddlewares(ctx, payload, provider.TriggerPostProvider, s.registry.GetPostMiddlewares(method))
	return payload, err
}

// runMiddlewares runs mws in order with the trigger set. stop reports whether the pipeline must
// not continue.
func (s *Store) runMiddlewares(ctx context.Context, payload provider.Payload, trigger provider.Trigger, mws []middleware.Middleware) (provider.Payload, bool, error) {
	for _, m := range mws {
		payload.Base().Trigger = trigger
		out, err := m.Run(ctx, payload)
		if out != nil {
			payload = out
		}
		payload.Base().Trigger = provider.TriggerNone
		if err != nil {
			return payload, true, fmt.Errorf("%s: %s: %w", m.Name(), payload.Base().Method, err)
		}
		if payload.Base().Failed() {
			log.Debugf("%s: %s failed in %s: %v", s.name, payload.Base().Method, m.Name(), payload.Base().Err())
			return payload, true, nil
		}
	}
	return payload, false, nil
}

// --------------------------------------------------------------------------
// Metadata (forwarded to the provider)
// --------------------------------------------------------------------------

func (s *Store) GetMetadata(ctx context.Context, key string) (any, bool, error) {
	return s.provider.GetMetadata(ctx, key)
}

func (s *Store) SetMetadata(ctx context.Context, key string, value any) error {
	return s.provider.SetMetadata(ctx, key, value)
}

func (s *Store) DeleteMetadata(ctx context.Context, key string) error {
	return s.provider.DeleteMetadata(ctx, key)
}
