package vajrastream

import (
	"sync"
	"time"
)

// ============================================================================
// Store Events
// ============================================================================

// Store event names, delivered to OnChange handlers.
const (
	EventState    = "state"
	EventStatus   = "status"
	EventSpectrum = "spectrum"
	EventSessions = "sessions"
	EventStats    = "stats"
	EventError    = "error"
	EventCrystal  = "crystal"
	EventWave     = "wave"
)

// Connection status labels published through the store.
const (
	StatusDisconnected = "disconnected"
	StatusConnected    = "connected"
	StatusError        = "error"
)

// StoreEventHandler observes a single store change.
type StoreEventHandler func(event string, payload any)

type storeEmitter struct {
	emu       sync.RWMutex
	listeners map[string][]StoreEventHandler
}

func (e *storeEmitter) on(event string, handler StoreEventHandler) {
	e.emu.Lock()
	defer e.emu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[string][]StoreEventHandler)
	}
	e.listeners[event] = append(e.listeners[event], handler)
}

func (e *storeEmitter) emit(event string, payload any) {
	e.emu.RLock()
	handlers := append([]StoreEventHandler{}, e.listeners[event]...)
	e.emu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() { recover() }()
			h(event, payload)
		}()
	}
}

// ============================================================================
// Store
// ============================================================================

// Store is the owned, observable state container for one client: the feed
// writes pushed state into it, the action gateway mirrors failures into it,
// and consumers read snapshots or subscribe to change events. It is built by
// NewClient (or NewStore directly) and torn down with its owner; there is no
// package-level instance.
type Store struct {
	storeEmitter

	mu         sync.RWMutex
	state      StreamState
	status     string
	lastError  string
	lastUpdate time.Time
	spectrum   []float64
	sessions   map[string]SessionRecord
	stats      map[string]any
	crystal    CrystalBroadcast
	wave       ScalarWave
}

// NewStore creates an empty store in the idle, disconnected state.
func NewStore() *Store {
	return &Store{
		state:    StateIdle,
		status:   StatusDisconnected,
		sessions: make(map[string]SessionRecord),
		stats:    make(map[string]any),
	}
}

// OnChange registers a handler for one store event. Handlers run
// synchronously on the mutating goroutine and a panic in one handler does
// not disturb the others.
func (s *Store) OnChange(event string, handler StoreEventHandler) {
	s.on(event, handler)
}

// ── Connection state ────────────────────────────────────────────────────────

// SetState records the feed lifecycle state.
func (s *Store) SetState(state StreamState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.emit(EventState, state)
}

// State returns the feed lifecycle state.
func (s *Store) State() StreamState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetStatus replaces the connection-status label.
func (s *Store) SetStatus(label string) {
	s.mu.Lock()
	s.status = label
	s.mu.Unlock()
	s.emit(EventStatus, label)
}

// Status returns the connection-status label.
func (s *Store) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetError records a user-facing error message.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
	s.emit(EventError, msg)
}

// ClearError resets the error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	cleared := s.lastError != ""
	s.lastError = ""
	s.mu.Unlock()
	if cleared {
		s.emit(EventError, "")
	}
}

// LastError returns the most recent error message, or "".
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// LastUpdate returns the server timestamp of the most recent full snapshot.
func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// ── Pushed state ────────────────────────────────────────────────────────────

// ApplyRealtime replaces the spectrum and the whole session map from a full
// snapshot and stamps the update time from the server clock.
func (s *Store) ApplyRealtime(f *RealtimeDataFrame) {
	sessions := make(map[string]SessionRecord, len(f.ActiveSessions))
	for id, rec := range f.ActiveSessions {
		sessions[id] = rec
	}
	s.mu.Lock()
	s.spectrum = append([]float64(nil), f.AudioSpectrum...)
	s.sessions = sessions
	s.lastUpdate = time.UnixMilli(int64(f.Timestamp * 1000))
	s.mu.Unlock()
	s.emit(EventSpectrum, s.Spectrum())
	s.emit(EventSessions, s.Sessions())
}

// SetSpectrum replaces the spectrum snapshot. Values arrive already
// normalized and are stored as-is.
func (s *Store) SetSpectrum(spectrum []float64) {
	s.mu.Lock()
	s.spectrum = append([]float64(nil), spectrum...)
	s.mu.Unlock()
	s.emit(EventSpectrum, s.Spectrum())
}

// Spectrum returns a copy of the current spectrum snapshot.
func (s *Store) Spectrum() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.spectrum...)
}

// PatchSession merges one session record into the map, keyed by its ID.
// Existing entries for other IDs are untouched.
func (s *Store) PatchSession(rec SessionRecord) {
	s.mu.Lock()
	s.sessions[rec.ID] = rec
	s.mu.Unlock()
	s.emit(EventSessions, s.Sessions())
}

// Sessions returns a copy of the active-session map.
func (s *Store) Sessions() map[string]SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SessionRecord, len(s.sessions))
	for id, rec := range s.sessions {
		out[id] = rec
	}
	return out
}

// Session returns one session record by ID.
func (s *Store) Session(id string) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	return rec, ok
}

// MergeStats merges a stats patch into the stats map, overwriting only the
// keys present in the patch.
func (s *Store) MergeStats(patch map[string]any) {
	s.mu.Lock()
	for k, v := range patch {
		s.stats[k] = v
	}
	s.mu.Unlock()
	s.emit(EventStats, s.Stats())
}

// Stats returns a copy of the stats map.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// ── Derived status ──────────────────────────────────────────────────────────

// SetCrystal replaces the crystal-broadcast state.
func (s *Store) SetCrystal(c CrystalBroadcast) {
	s.mu.Lock()
	s.crystal = c
	s.mu.Unlock()
	s.emit(EventCrystal, c)
}

// Crystal returns the crystal-broadcast state.
func (s *Store) Crystal() CrystalBroadcast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crystal
}

// SetWaveRate patches the scalar-wave pulse rate.
func (s *Store) SetWaveRate(rateHz float64) {
	s.mu.Lock()
	s.wave.RateHz = rateHz
	wave := s.wave
	s.mu.Unlock()
	s.emit(EventWave, wave)
}

// SetWaveActive patches the scalar-wave active flag.
func (s *Store) SetWaveActive(active bool) {
	s.mu.Lock()
	s.wave.Active = active
	wave := s.wave
	s.mu.Unlock()
	s.emit(EventWave, wave)
}

// Wave returns the scalar-wave state.
func (s *Store) Wave() ScalarWave {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wave
}
