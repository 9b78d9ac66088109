// Package vajrastream provides the Go client for the Vajra.Stream audio
// server: the realtime feed (spectrum, sessions, and status pushed over
// WebSocket) and the action gateway (session control, tone generation and
// playback, server stats).
//
// Example:
//
//	client := vajrastream.NewClient("http://localhost:8000")
//	ctx := context.Background()
//
//	// Action gateway (sub-module pattern)
//	res, err := client.Sessions.Run(ctx, &vajrastream.SessionConfig{
//		Name:         "evening",
//		ToneSettings: vajrastream.ToneSettings{Frequency: 432, Duration: 60, Volume: 0.7},
//	})
//
//	// Realtime feed, sharing the client's store
//	stream := client.Stream(nil)
//	defer stream.Close()
//	stream.Connect(ctx)
//
//	spectrum := client.Store().Spectrum()
package vajrastream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================================
// Client
// ============================================================================

const (
	// DefaultTimeout bounds each action request.
	DefaultTimeout = 30 * time.Second

	// DefaultStreamPort is the fixed port the stream server listens on.
	DefaultStreamPort = 8765

	userAgent = "vajra-stream-go/0.3"
)

// ErrNoAudio is returned by Play when no Generate call has succeeded on this
// client. The check covers only the client's own history; the server may
// still discard audio on its side (for example after a restart).
var ErrNoAudio = errors.New("no audio available")

// Client is the Vajra.Stream action gateway. Sub-modules hang off exported
// fields; every failed action is also mirrored into the shared Store.
type Client struct {
	baseURL    string
	streamURL  string
	streamPort int
	timeout    time.Duration
	httpClient *http.Client
	rest       *resty.Client
	store      *Store
	log        *zap.Logger

	// Sub-module clients.
	Sessions *SessionsClient
	Audio    *AudioClient
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout for action calls.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client for action calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithStreamURL pins the feed endpoint instead of deriving it from the
// origin.
func WithStreamURL(rawURL string) ClientOption {
	return func(c *Client) {
		c.streamURL = rawURL
	}
}

// WithStreamPort overrides the port used when deriving the feed endpoint.
func WithStreamPort(port int) ClientOption {
	return func(c *Client) {
		c.streamPort = port
	}
}

// WithLogger sets the logger shared by the gateway and feed clients.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.log = logger
	}
}

// WithStore injects an externally owned store.
func WithStore(store *Store) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:8000".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		streamPort: DefaultStreamPort,
		timeout:    DefaultTimeout,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewStore()
	}
	if c.streamURL == "" {
		derived, err := DeriveStreamURL(c.baseURL, c.streamPort)
		if err != nil {
			c.log.Warn("failed to derive stream url", zap.String("origin", c.baseURL), zap.Error(err))
		} else {
			c.streamURL = derived
		}
	}

	// Retries stay disabled: the action endpoints are not idempotent and a
	// retried create or start would duplicate server-side work.
	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("User-Agent", userAgent).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			req.SetHeader("X-Request-ID", uuid.NewString())
			return nil
		})

	c.Sessions = &SessionsClient{c: c}
	c.Audio = &AudioClient{c: c}
	return c
}

// BaseURL returns the configured server origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StreamURL returns the feed endpoint the client will dial.
func (c *Client) StreamURL() string {
	return c.streamURL
}

// Store returns the state container shared by the gateway and the feed.
func (c *Client) Store() *Store {
	return c.store
}

// Stream creates a feed client bound to this client's store. Pass nil for
// default settings; a zero URL is filled in from the derived feed endpoint.
func (c *Client) Stream(config *StreamConfig) *StreamClient {
	cfg := StreamConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.URL == "" {
		cfg.URL = c.streamURL
	}
	if cfg.Logger == nil {
		cfg.Logger = c.log
	}
	return NewStreamClient(c.store, &cfg)
}

// DeriveStreamURL maps an HTTP origin to the feed endpoint: the socket
// scheme mirrors the origin scheme (http to ws, https to wss) and the port
// is replaced with the fixed stream port. Pass port 0 to keep the origin's
// port.
func DeriveStreamURL(origin string, port int) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("failed to parse origin: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	if port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	u.Path = "/ws"
	return u.String(), nil
}

// ============================================================================
// Actions
// ============================================================================

// doAction issues one action request and decodes the generic result. Both
// transport failures and status:error responses are mirrored into the store.
func (c *Client) doAction(ctx context.Context, method, path string, body any) (*ActionResult, error) {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		c.store.SetError(err.Error())
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	result := &ActionResult{}
	if err := json.Unmarshal(resp.Body(), result); err != nil {
		c.store.SetError("unparseable response from " + path)
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	result.raw = append(json.RawMessage(nil), resp.Body()...)

	if !result.OK() {
		c.store.SetError(result.ErrorText())
	}
	return result, nil
}

// Stats fetches point-in-time server statistics.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	resp, err := c.rest.R().SetContext(ctx).Get("/api/stats")
	if err != nil {
		c.store.SetError(err.Error())
		return nil, fmt.Errorf("GET /api/stats: %w", err)
	}
	var stats map[string]any
	if err := json.Unmarshal(resp.Body(), &stats); err != nil {
		c.store.SetError("unparseable stats response")
		return nil, fmt.Errorf("failed to decode stats response: %w", err)
	}
	return stats, nil
}

// ── Sessions ────────────────────────────────────────────────────────────────

// SessionsClient manages tone sessions on the server.
type SessionsClient struct {
	c *Client
}

// Create registers a new session from the given configuration.
func (s *SessionsClient) Create(ctx context.Context, config *SessionConfig) (*ActionResult, error) {
	return s.c.doAction(ctx, http.MethodPost, "/api/sessions", config)
}

// Start starts a previously created session.
func (s *SessionsClient) Start(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.c.doAction(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/start", nil)
}

// Stop stops a running session.
func (s *SessionsClient) Stop(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.c.doAction(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/stop", nil)
}

// Run creates a session and, if creation reports success, immediately starts
// it. On a create failure the create result is returned untouched and no
// start request is issued; the started session is never started twice.
func (s *SessionsClient) Run(ctx context.Context, config *SessionConfig) (*ActionResult, error) {
	created, err := s.Create(ctx, config)
	if err != nil {
		return nil, err
	}
	if !created.OK() {
		return created, nil
	}
	if created.SessionID == "" {
		s.c.store.SetError("session created without an id")
		return created, fmt.Errorf("create response missing session_id")
	}
	return s.Start(ctx, created.SessionID)
}

// ── Audio ───────────────────────────────────────────────────────────────────

// AudioClient triggers tone generation and playback.
type AudioClient struct {
	c *Client

	mu        sync.Mutex
	generated bool
}

// Generate renders a tone from the given settings. The bounded settings are
// silently clamped; a non-positive frequency fails locally before any
// request is made.
func (a *AudioClient) Generate(ctx context.Context, settings ToneSettings) (*ActionResult, error) {
	settings = settings.Normalized()
	if err := settings.Validate(); err != nil {
		a.c.store.SetError(err.Error())
		return nil, err
	}
	res, err := a.c.doAction(ctx, http.MethodPost, "/api/audio/generate", settings)
	if err != nil {
		return nil, err
	}
	if res.OK() {
		a.mu.Lock()
		a.generated = true
		a.mu.Unlock()
	}
	return res, nil
}

// Play plays the most recently generated audio at the given hardware level.
// It requires a successful Generate on this client first and otherwise fails
// with ErrNoAudio without touching the network.
func (a *AudioClient) Play(ctx context.Context, hardwareLevel float64) (*ActionResult, error) {
	a.mu.Lock()
	generated := a.generated
	a.mu.Unlock()
	if !generated {
		a.c.store.SetError("no audio available - generate a tone first")
		return nil, ErrNoAudio
	}
	return a.c.doAction(ctx, http.MethodPost, "/api/audio/play", &PlayRequest{HardwareLevel: hardwareLevel})
}
