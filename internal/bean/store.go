package bean

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/playerhub/internal/schedule"
)

const (
	// DefaultSyncSaveDelay is the quiet period before a synced write.
	DefaultSyncSaveDelay = 10 * time.Second

	// DefaultSyncRetryDelay is the pause before retrying a failed sync load.
	DefaultSyncRetryDelay = 30 * time.Second
)

// LocalBackend is a synchronous string key-value store.
type LocalBackend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// SyncBackend is a remote store that holds one flat snapshot per store.
type SyncBackend interface {
	Load(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, values map[string]any) error
	Clear(ctx context.Context) error
}

// Option configures a Store.
type Option func(*Store)

// WithLocal persists overrides of the defaults to b.
func WithLocal(b LocalBackend) Option {
	return func(s *Store) { s.local = b }
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the clock driving sync timers.
func WithClock(clock schedule.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithDispatcher serializes timer-driven writes through d.
func WithDispatcher(d *Dispatcher) Option {
	return func(s *Store) { s.dispatcher = d }
}

// WithSyncDelays overrides the sync save debounce and load retry delays.
func WithSyncDelays(save, retry time.Duration) Option {
	return func(s *Store) {
		s.saveDelay = save
		s.retryDelay = retry
	}
}

type property struct {
	value     any
	def       any
	equals    EqualsFunc
	listeners []*Listener
}

type binding struct {
	name     string
	listener *Listener
}

type syncState struct {
	backend  SyncBackend
	onLoaded func()
	loading  bool
	load     *schedule.Task
	save     *schedule.Debouncer
}

// Store is a fixed-schema collection of observable properties. The set
// of names is taken from the defaults map at construction and never
// changes.
type Store struct {
	name   string
	logger zerolog.Logger
	clock  schedule.Clock
	local  LocalBackend

	dispatcher *Dispatcher

	saveDelay  time.Duration
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	props   map[string]*property
	order   []string
	sources map[string][]binding
	sync    *syncState
	closed  bool
}

// New creates a store from defaults, restoring locally persisted
// overrides when a local backend is configured.
func New(name string, defaults map[string]any, opts ...Option) (*Store, error) {
	s := &Store{
		name:       name,
		logger:     zerolog.Nop(),
		clock:      schedule.Real(),
		saveDelay:  DefaultSyncSaveDelay,
		retryDelay: DefaultSyncRetryDelay,
		props:      make(map[string]*property, len(defaults)),
		sources:    make(map[string][]binding),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "bean").Str("store", name).Logger()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for key, def := range defaults {
		def = normalize(def)
		s.props[key] = &property{value: cloneValue(def), def: def}
		s.order = append(s.order, key)
	}
	sort.Strings(s.order)

	if s.local != nil {
		if err := s.restore(); err != nil {
			s.cancel()
			return nil, err
		}
	}

	return s, nil
}

// restore overlays locally persisted values onto the defaults.
func (s *Store) restore() error {
	for _, key := range s.order {
		raw, ok, err := s.local.Get(key)
		if err != nil {
			return &PersistenceIOError{Op: "get", Key: key, Err: err}
		}
		if !ok {
			continue
		}

		p := s.props[key]
		value, err := Decode(raw, p.def)
		if err != nil {
			s.logger.Warn().Err(err).Str("property", key).Msg("Ignoring undecodable persisted value")
			continue
		}
		p.value = value
	}
	return nil
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Names returns the property names in sorted order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Get returns the current value of a property.
func (s *Store) Get(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.props[name]
	if !ok {
		return nil, s.unknown(name)
	}
	return p.value, nil
}

// Snapshot returns a deep copy of every property value.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.props))
	for key, p := range s.props {
		out[key] = cloneValue(p.value)
	}
	return out
}

// Set assigns a property. If the value is considered equal to the current
// one nothing happens. Otherwise the value is stored, persisted, and every
// listener of the property is called synchronously in registration order.
func (s *Store) Set(name string, value any) error {
	value = normalize(value)

	s.mu.Lock()
	p, ok := s.props[name]
	if !ok {
		s.mu.Unlock()
		return s.unknown(name)
	}

	equals := p.equals
	if equals == nil {
		equals = DefaultEquals
	}
	if equals(p.value, value) {
		s.mu.Unlock()
		return nil
	}

	if s.local != nil {
		if err := s.persistLocked(name, p, equals, value); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	old := p.value
	p.value = value
	listeners := append([]*Listener(nil), p.listeners...)
	st := s.sync
	syncing := st != nil && !st.loading
	s.mu.Unlock()

	if syncing {
		st.save.Trigger()
	}

	s.notify(listeners, value, old, name)
	return nil
}

// persistLocked writes or clears the local entry for a property. Storage
// only ever holds values that differ from the defaults.
func (s *Store) persistLocked(name string, p *property, equals EqualsFunc, value any) error {
	if equals(p.def, value) {
		if err := s.local.Remove(name); err != nil {
			s.logger.Error().Err(&PersistenceIOError{Op: "remove", Key: name, Err: err}).Msg("Failed to clear persisted value")
		}
		return nil
	}

	encoded, err := Encode(value)
	if err != nil {
		if serr, ok := err.(*SerializationError); ok {
			serr.Name = name
		}
		return err
	}
	if err := s.local.Set(name, encoded); err != nil {
		s.logger.Error().Err(&PersistenceIOError{Op: "set", Key: name, Err: err}).Msg("Failed to persist value")
	}
	return nil
}

func (s *Store) notify(listeners []*Listener, newValue, oldValue any, name string) {
	for _, l := range listeners {
		s.call(l, newValue, oldValue, name)
	}
}

func (s *Store) call(l *Listener, newValue, oldValue any, name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("property", name).
				Str("panic", fmt.Sprint(r)).
				Msg("Listener failed")
		}
	}()
	l.fn(newValue, oldValue, name)
}

// SetEquals installs a custom equality predicate for one property.
func (s *Store) SetEquals(name string, fn EqualsFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.props[name]
	if !ok {
		return s.unknown(name)
	}
	p.equals = fn
	return nil
}

// AddListener registers l on every space-separated name. Registering the
// same listener twice on a property is a no-op. A non-empty source groups
// the registrations for RemoveAllForSource.
func (s *Store) AddListener(names string, l *Listener, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := strings.Fields(names)
	for _, name := range fields {
		if _, ok := s.props[name]; !ok {
			return s.unknown(name)
		}
	}

	for _, name := range fields {
		p := s.props[name]
		if containsListener(p.listeners, l) {
			continue
		}
		p.listeners = append(p.listeners, l)
		if source != "" {
			s.sources[source] = append(s.sources[source], binding{name: name, listener: l})
		}
	}
	return nil
}

// RemoveListener unregisters l from every space-separated name.
func (s *Store) RemoveListener(names string, l *Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range strings.Fields(names) {
		p, ok := s.props[name]
		if !ok {
			return s.unknown(name)
		}
		p.listeners = removeListener(p.listeners, l)
		s.dropBindings(name, l)
	}
	return nil
}

// dropBindings forgets the source records of l on name. Callers hold mu.
func (s *Store) dropBindings(name string, l *Listener) {
	for source, bindings := range s.sources {
		kept := bindings[:0]
		for _, b := range bindings {
			if b.name != name || b.listener != l {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(s.sources, source)
			continue
		}
		s.sources[source] = kept
	}
}

// Watch calls l right away and then registers it like AddListener. For a
// single name the call receives (current, current, name); for several
// names it receives (nil, nil, "").
func (s *Store) Watch(names string, l *Listener, source string) error {
	fields := strings.Fields(names)

	s.mu.Lock()
	var current any
	for _, name := range fields {
		p, ok := s.props[name]
		if !ok {
			s.mu.Unlock()
			return s.unknown(name)
		}
		current = p.value
	}
	s.mu.Unlock()

	if len(fields) == 1 {
		s.call(l, current, current, fields[0])
	} else {
		s.call(l, nil, nil, "")
	}
	return s.AddListener(names, l, source)
}

// RemoveAllForSource drops every registration made under source.
// Registrations without a source or under another source are untouched.
func (s *Store) RemoveAllForSource(source string) {
	if source == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.sources[source] {
		if p, ok := s.props[b.name]; ok {
			p.listeners = removeListener(p.listeners, b.listener)
		}
	}
	delete(s.sources, source)
}

// ResetToDefaults assigns a copy of every default through the normal Set
// path, then clears the synced copy if sync is active.
func (s *Store) ResetToDefaults(ctx context.Context) error {
	var firstErr error
	for _, name := range s.order {
		s.mu.Lock()
		def := cloneValue(s.props[name].def)
		s.mu.Unlock()

		if err := s.Set(name, def); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.mu.Lock()
	st := s.sync
	s.mu.Unlock()
	if st == nil {
		return firstErr
	}

	st.save.Stop()
	if err := st.backend.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear synced values")
		if firstErr == nil {
			firstErr = &RemoteSyncError{Op: "clear", Err: err}
		}
	}
	return firstErr
}

// Import sets every known key of record and returns the keys that did not
// match any property, sorted.
func (s *Store) Import(record map[string]any) ([]string, error) {
	var unknown []string
	var firstErr error

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !s.Has(key) {
			unknown = append(unknown, key)
			continue
		}
		if err := s.Set(key, record[key]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return unknown, firstErr
}

// Has reports whether name is a property of the store.
func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.props[name]
	return ok
}

// Close cancels pending timers and in-flight sync calls. The store stays
// readable and writable in memory.
func (s *Store) Close() {
	s.DisableSync()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
}

func (s *Store) unknown(name string) error {
	return &UnknownPropertyError{Store: s.name, Name: name}
}

func containsListener(list []*Listener, l *Listener) bool {
	for _, existing := range list {
		if existing == l {
			return true
		}
	}
	return false
}

func removeListener(list []*Listener, l *Listener) []*Listener {
	out := list[:0]
	for _, existing := range list {
		if existing != l {
			out = append(out, existing)
		}
	}
	return out
}
