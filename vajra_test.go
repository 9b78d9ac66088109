package vajrastream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// ============================================================================
// Test Helpers
// ============================================================================

type recordedRequest struct {
	method    string
	path      string
	body      map[string]any
	userAgent string
	requestID string
}

type actionRecorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (a *actionRecorder) record(r *http.Request) recordedRequest {
	req := recordedRequest{
		method:    r.Method,
		path:      r.URL.Path,
		userAgent: r.Header.Get("User-Agent"),
		requestID: r.Header.Get("X-Request-ID"),
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		req.body = body
	}
	a.mu.Lock()
	a.reqs = append(a.reqs, req)
	a.mu.Unlock()
	return req
}

func (a *actionRecorder) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reqs)
}

func (a *actionRecorder) count(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, r := range a.reqs {
		if r.path == path {
			n++
		}
	}
	return n
}

func (a *actionRecorder) last(path string) (recordedRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.reqs) - 1; i >= 0; i-- {
		if a.reqs[i].path == path {
			return a.reqs[i], true
		}
	}
	return recordedRequest{}, false
}

// newActionClient serves canned JSON per path and records every request.
func newActionClient(t *testing.T, rec *actionRecorder, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := rec.record(r)
		resp, ok := routes[req.path]
		if !ok {
			t.Errorf("unexpected request: %s %s", req.method, req.path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

// ============================================================================
// Session Action Tests
// ============================================================================

func TestSessionsRunStartsExactlyOnce(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/sessions":              `{"status":"success","session_id":"sess-1"}`,
		"/api/sessions/sess-1/start": `{"status":"success","message":"started"}`,
	})

	res, err := client.Sessions.Run(context.Background(), &SessionConfig{
		Name:         "evening",
		ToneSettings: ToneSettings{Frequency: 432, Duration: 30, Volume: 0.7},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.OK() {
		t.Fatalf("run result = %+v, want success", res)
	}
	if n := rec.count("/api/sessions"); n != 1 {
		t.Errorf("create called %d times", n)
	}
	if n := rec.count("/api/sessions/sess-1/start"); n != 1 {
		t.Errorf("start called %d times, want exactly 1", n)
	}
	if start, _ := rec.last("/api/sessions/sess-1/start"); start.method != http.MethodPost {
		t.Errorf("start method = %s, want POST", start.method)
	}
}

func TestSessionsRunShortCircuitsOnCreateFailure(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/sessions": `{"status":"error","message":"at capacity"}`,
	})

	res, err := client.Sessions.Run(context.Background(), &SessionConfig{Name: "evening"})
	if err != nil {
		t.Fatalf("a responded error is not a transport error: %v", err)
	}
	if res.OK() {
		t.Fatalf("create failure reported as success")
	}
	if res.Message != "at capacity" {
		t.Errorf("message = %q, want the create failure untouched", res.Message)
	}
	if n := rec.total(); n != 1 {
		t.Fatalf("%d requests issued, start must not run after a failed create", n)
	}
	if client.Store().LastError() != "at capacity" {
		t.Errorf("store error = %q, want the gateway failure mirrored", client.Store().LastError())
	}
}

func TestSessionsRunRequiresSessionID(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/sessions": `{"status":"success"}`,
	})

	_, err := client.Sessions.Run(context.Background(), &SessionConfig{Name: "evening"})
	if err == nil {
		t.Fatalf("a create success without session_id must not be startable")
	}
	if n := rec.total(); n != 1 {
		t.Fatalf("%d requests issued, nothing must be started without an id", n)
	}
}

func TestSessionsCreateSendsFlattenedConfig(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/sessions": `{"status":"success","session_id":"s"}`,
	})

	_, err := client.Sessions.Create(context.Background(), &SessionConfig{
		Name:         "evening",
		ToneSettings: ToneSettings{Frequency: 432, Duration: 30, Volume: 0.7, PrayerBowlMode: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req, ok := rec.last("/api/sessions")
	if !ok {
		t.Fatalf("create request not recorded")
	}
	if req.body["name"] != "evening" {
		t.Errorf("body name = %v", req.body["name"])
	}
	if req.body["frequency"] != 432.0 {
		t.Errorf("body frequency = %v", req.body["frequency"])
	}
	if req.body["prayer_bowl_mode"] != true {
		t.Errorf("body prayer_bowl_mode = %v", req.body["prayer_bowl_mode"])
	}
}

func TestSessionsStartStopPaths(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/sessions/abc/start": `{"status":"success"}`,
		"/api/sessions/abc/stop":  `{"status":"success"}`,
	})

	if _, err := client.Sessions.Start(context.Background(), "abc"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := client.Sessions.Stop(context.Background(), "abc"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if rec.count("/api/sessions/abc/start") != 1 || rec.count("/api/sessions/abc/stop") != 1 {
		t.Errorf("unexpected request layout: %+v", rec.reqs)
	}
}

// ============================================================================
// Audio Action Tests
// ============================================================================

func TestAudioPlayBeforeGenerateIsLocal(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{})

	_, err := client.Audio.Play(context.Background(), 0.8)
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("err = %v, want ErrNoAudio", err)
	}
	if n := rec.total(); n != 0 {
		t.Fatalf("play without audio issued %d requests, want 0", n)
	}
	if client.Store().LastError() == "" {
		t.Errorf("precondition failure not mirrored into the store")
	}
}

func TestAudioGenerateThenPlay(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/audio/generate": `{"status":"success"}`,
		"/api/audio/play":     `{"status":"success"}`,
	})

	if _, err := client.Audio.Generate(context.Background(), ToneSettings{Frequency: 432, Duration: 30, Volume: 0.7}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	res, err := client.Audio.Play(context.Background(), 0.8)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !res.OK() {
		t.Fatalf("play result = %+v", res)
	}

	play, ok := rec.last("/api/audio/play")
	if !ok {
		t.Fatalf("play request not recorded")
	}
	if play.body["hardware_level"] != 0.8 {
		t.Errorf("hardware_level = %v, want 0.8", play.body["hardware_level"])
	}
}

func TestAudioGenerateClampsBeforeSending(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/audio/generate": `{"status":"success"}`,
	})

	_, err := client.Audio.Generate(context.Background(), ToneSettings{
		Frequency:        432,
		Duration:         400,
		Volume:           1.5,
		HarmonicStrength: -0.2,
		ModulationDepth:  0.3,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	req, _ := rec.last("/api/audio/generate")
	if req.body["volume"] != 1.0 {
		t.Errorf("volume sent as %v, want clamped 1.0", req.body["volume"])
	}
	if req.body["duration"] != 300.0 {
		t.Errorf("duration sent as %v, want clamped 300", req.body["duration"])
	}
	if req.body["harmonic_strength"] != 0.0 {
		t.Errorf("harmonic_strength sent as %v, want clamped 0", req.body["harmonic_strength"])
	}
	if req.body["modulation_depth"] != 0.3 {
		t.Errorf("modulation_depth sent as %v, want 0.3 untouched", req.body["modulation_depth"])
	}
}

func TestAudioGenerateRejectsNonPositiveFrequency(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{})

	_, err := client.Audio.Generate(context.Background(), ToneSettings{Frequency: 0, Duration: 30})
	if err == nil {
		t.Fatalf("zero frequency accepted")
	}
	if n := rec.total(); n != 0 {
		t.Fatalf("invalid settings issued %d requests, want 0", n)
	}

	// A rejected generate leaves play locked.
	if _, err := client.Audio.Play(context.Background(), 0.5); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("play unlocked by a rejected generate: %v", err)
	}
}

func TestAudioGenerateServerErrorKeepsPlayLocked(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/audio/generate": `{"status":"error","message":"dsp offline"}`,
	})

	res, err := client.Audio.Generate(context.Background(), ToneSettings{Frequency: 432, Duration: 30})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.OK() {
		t.Fatalf("server error reported as success")
	}
	if client.Store().LastError() != "dsp offline" {
		t.Errorf("store error = %q", client.Store().LastError())
	}

	if _, err := client.Audio.Play(context.Background(), 0.5); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("play unlocked by a failed generate: %v", err)
	}
	if n := rec.count("/api/audio/play"); n != 0 {
		t.Fatalf("play reached the network %d times", n)
	}
}

// ============================================================================
// Stats and Transport Tests
// ============================================================================

func TestStats(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/stats": `{"active_connections":2,"total_sessions":7}`,
	})

	stats, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["active_connections"] != float64(2) || stats["total_sessions"] != float64(7) {
		t.Errorf("stats = %v", stats)
	}
	if req, _ := rec.last("/api/stats"); req.method != http.MethodGet {
		t.Errorf("stats method = %s, want GET", req.method)
	}
}

func TestActionTransportErrorsPropagate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(srv.URL)
	srv.Close()

	_, err := client.Sessions.Create(context.Background(), &SessionConfig{Name: "x"})
	if err == nil {
		t.Fatalf("request against a dead server succeeded")
	}
	if client.Store().LastError() == "" {
		t.Errorf("transport failure not mirrored into the store")
	}
}

func TestActionRequestHeaders(t *testing.T) {
	rec := &actionRecorder{}
	client := newActionClient(t, rec, map[string]string{
		"/api/stats": `{}`,
	})

	if _, err := client.Stats(context.Background()); err != nil {
		t.Fatalf("stats: %v", err)
	}
	req, _ := rec.last("/api/stats")
	if !strings.HasPrefix(req.userAgent, "vajra-stream-go/") {
		t.Errorf("user agent = %q", req.userAgent)
	}
	if req.requestID == "" {
		t.Errorf("request id header missing")
	}
}

// ============================================================================
// Client Construction Tests
// ============================================================================

func TestDeriveStreamURL(t *testing.T) {
	cases := []struct {
		name    string
		origin  string
		port    int
		want    string
		wantErr bool
	}{
		{"http origin", "http://localhost:8000", 8765, "ws://localhost:8765/ws", false},
		{"https origin", "https://vajra.example.com", 8765, "wss://vajra.example.com:8765/ws", false},
		{"keep origin port", "http://localhost:9001", 0, "ws://localhost:9001/ws", false},
		{"already socket scheme", "ws://localhost:8765", 0, "ws://localhost:8765/ws", false},
		{"unsupported scheme", "ftp://host", 0, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveStreamURL(tc.origin, tc.port)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("derive: %v", err)
			}
			if got != tc.want {
				t.Fatalf("derived %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("http://localhost:8000/")
	if client.BaseURL() != "http://localhost:8000" {
		t.Errorf("base url = %q, trailing slash kept", client.BaseURL())
	}
	if client.StreamURL() != "ws://localhost:8765/ws" {
		t.Errorf("stream url = %q", client.StreamURL())
	}

	pinned := NewClient("http://localhost:8000", WithStreamURL("wss://feed.example.com/ws"))
	if pinned.StreamURL() != "wss://feed.example.com/ws" {
		t.Errorf("pinned stream url = %q", pinned.StreamURL())
	}

	repinned := NewClient("http://localhost:8000", WithStreamPort(9100))
	if repinned.StreamURL() != "ws://localhost:9100/ws" {
		t.Errorf("reported stream url = %q", repinned.StreamURL())
	}
}

func TestClientStreamSharesStore(t *testing.T) {
	client := NewClient("http://localhost:8000")
	stream := client.Stream(nil)
	defer stream.Close()

	if stream.Store() != client.Store() {
		t.Fatalf("feed and gateway must share one store")
	}
}

func TestActionResultHelpers(t *testing.T) {
	ok := &ActionResult{Status: ActionSuccess}
	if !ok.OK() {
		t.Errorf("success result not OK")
	}

	res := &ActionResult{Status: ActionError, Message: "plain"}
	if res.ErrorText() != "plain" {
		t.Errorf("error text = %q", res.ErrorText())
	}
	res.Error = &APIError{Code: "E42", Message: "structured"}
	if res.ErrorText() != "structured" {
		t.Errorf("structured error not preferred: %q", res.ErrorText())
	}

	bare := &ActionResult{Status: ActionError}
	if !strings.Contains(bare.ErrorText(), ActionError) {
		t.Errorf("fallback text = %q", bare.ErrorText())
	}

	raw := &ActionResult{Status: ActionSuccess, raw: json.RawMessage(`{"status":"success","granted":true}`)}
	var extra struct {
		Granted bool `json:"granted"`
	}
	if err := raw.Decode(&extra); err != nil || !extra.Granted {
		t.Errorf("decode extra fields: %v %+v", err, extra)
	}
}
