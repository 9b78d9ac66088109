package vajrastream

import "encoding/json"

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents a structured error returned by the server.
type APIError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// ============================================================================
// Action Gateway Types
// ============================================================================

// Statuses reported in the "status" field of action responses.
const (
	ActionSuccess = "success"
	ActionError   = "error"
)

// ActionResult is the generic response from the action endpoints.
type ActionResult struct {
	Status    string    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     *APIError `json:"error,omitempty"`

	raw json.RawMessage
}

// OK reports whether the action succeeded.
func (r *ActionResult) OK() bool {
	return r.Status == ActionSuccess
}

// Decode unmarshals the full response body into v, for endpoints that return
// fields beyond the generic ones.
func (r *ActionResult) Decode(v any) error {
	if r.raw == nil {
		return nil
	}
	return json.Unmarshal(r.raw, v)
}

// ErrorText returns the most specific failure message in the result.
func (r *ActionResult) ErrorText() string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	if r.Message != "" {
		return r.Message
	}
	return "request failed with status " + r.Status
}

// PlayRequest is the body of the play endpoint.
type PlayRequest struct {
	HardwareLevel float64 `json:"hardware_level"`
}

// ============================================================================
// Session Types
// ============================================================================

// Session statuses pushed by the server.
const (
	SessionCreated = "created"
	SessionRunning = "running"
	SessionStopped = "stopped"
)

// SessionRecord is one server-side session as pushed over the feed.
type SessionRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// SessionConfig is the body for creating a session.
type SessionConfig struct {
	Name string `json:"name"`
	ToneSettings
}

// ============================================================================
// Feed Frame Types
// ============================================================================

// Frame type tags recognized on the persistent feed. Inbound frames carry
// the tag in a top-level "type" field with the payload as sibling fields.
const (
	FrameRealtimeData     = "realtime_data"
	FrameSpectrumUpdate   = "spectrum_update"
	FrameSessionUpdate    = "session_update"
	FrameStatusUpdate     = "status_update"
	FrameHeartbeat        = "heartbeat"
	FrameStats            = "stats"
	FramePing             = "ping"
	FramePong             = "pong"
	FrameBroadcastStarted = "broadcast_started"
	FrameRateBroadcast    = "rate_broadcast"
	FrameWaveActive       = "wave_active"
	FrameError            = "error"
)

// frameHeader extracts the tag that routes an inbound frame.
type frameHeader struct {
	Type string `json:"type"`
}

// RealtimeDataFrame is the periodic full-state snapshot. Its timestamp is
// epoch seconds as produced by the server clock.
type RealtimeDataFrame struct {
	AudioSpectrum  []float64                `json:"audio_spectrum"`
	ActiveSessions map[string]SessionRecord `json:"active_sessions"`
	Timestamp      float64                  `json:"timestamp"`
}

// SpectrumFrame replaces the spectrum only.
type SpectrumFrame struct {
	AudioSpectrum []float64 `json:"audio_spectrum"`
}

// SessionUpdateFrame patches a single session record.
type SessionUpdateFrame struct {
	Session SessionRecord `json:"session"`
}

// StatusUpdateFrame replaces the connection-status label.
type StatusUpdateFrame struct {
	Status string `json:"status"`
}

// BroadcastStartedFrame announces an active crystal broadcast.
type BroadcastStartedFrame struct {
	Intention string  `json:"intention,omitempty"`
	StartedAt float64 `json:"started_at,omitempty"`
}

// RateBroadcastFrame carries the scalar-wave pulse rate.
type RateBroadcastFrame struct {
	RateHz float64 `json:"rate_hz"`
}

// WaveActiveFrame toggles the scalar-wave active flag.
type WaveActiveFrame struct {
	Active bool `json:"active"`
}

// ErrorFrame carries a non-fatal server-side error.
type ErrorFrame struct {
	Message string `json:"message"`
}

// ============================================================================
// Derived Status Types
// ============================================================================

// CrystalBroadcast is the crystal-broadcast state derived from
// broadcast_started frames.
type CrystalBroadcast struct {
	Active    bool    `json:"active"`
	Intention string  `json:"intention,omitempty"`
	StartedAt float64 `json:"started_at,omitempty"`
}

// ScalarWave is the scalar-wave generator state derived from rate_broadcast
// and wave_active frames.
type ScalarWave struct {
	Active bool    `json:"active"`
	RateHz float64 `json:"rate_hz,omitempty"`
}
