package vajrastream

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ============================================================================
// Configuration
// ============================================================================

// StreamConfig configures the realtime feed client.
type StreamConfig struct {
	// URL is the websocket endpoint. When the client is built through
	// Client.Stream an empty URL is filled in from the derived feed endpoint.
	URL string

	// DisableReconnect turns off automatic recovery; after a drop the client
	// then stays disconnected until Connect is called again.
	DisableReconnect bool

	MaxReconnectAttempts int           // consecutive failures before giving up (default 10)
	ReconnectBaseDelay   time.Duration // backoff base (default 1s)
	ReconnectMaxDelay    time.Duration // backoff cap before jitter (default 30s)
	ReconnectJitter      time.Duration // upper bound of the uniform jitter (default 1s)
	DialTimeout          time.Duration // bound on connection establishment (default 10s)
	HeartbeatInterval    time.Duration // application-level ping period (default 30s)
	HTTPClient           *http.Client  // used for the websocket handshake
	Logger               *zap.Logger   // default zap.NewNop()
}

func (c *StreamConfig) defaults() {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.ReconnectJitter == 0 {
		c.ReconnectJitter = 1 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// StreamState is the lifecycle state of the feed connection.
type StreamState string

const (
	StateIdle         StreamState = "idle"
	StateConnecting   StreamState = "connecting"
	StateConnected    StreamState = "connected"
	StateDisconnected StreamState = "disconnected"
	StateFailed       StreamState = "failed"
)

// ============================================================================
// Reconnector
// ============================================================================

// reconnector computes reconnect delays as a pure function of its counter:
// min(base * 2^attempt, max) plus uniform jitter in [0, jitter). The counter
// advances before each delay is computed and resets only on a successful
// open or a manual disconnect.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      time.Duration
	maxAttempts int
	attempt     int
}

func newReconnector(config *StreamConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		jitter:      config.ReconnectJitter,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

// shouldReconnect reports whether another attempt may be scheduled.
func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

// nextDelay advances the attempt counter and returns the delay to wait
// before that attempt.
func (r *reconnector) nextDelay() time.Duration {
	r.attempt++
	backoff := math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt)),
		float64(r.maxDelay),
	)
	jitter := rand.Float64() * float64(r.jitter)
	return time.Duration(backoff + jitter)
}

func (r *reconnector) reset() {
	r.attempt = 0
}

// ============================================================================
// StreamClient
// ============================================================================

// connEvent is one delivery from a connection's read loop: a frame, or the
// terminal read error. Tagging events with their source connection lets the
// run loop drop deliveries from a socket it has already replaced.
type connEvent struct {
	conn *websocket.Conn
	data []byte
	err  error
}

// StreamClient maintains the persistent feed connection: at most one live
// socket, bounded jittered reconnection, an application-level heartbeat, and
// dispatch of inbound frames into the Store.
//
// Every lifecycle transition happens on a single run loop goroutine; the
// exported methods only enqueue requests or read published state, so they
// are safe for concurrent use.
type StreamClient struct {
	config *StreamConfig
	store  *Store
	log    *zap.Logger
	recon  *reconnector

	mu               sync.Mutex
	conn             *websocket.Conn
	state            StreamState
	intentionalClose bool
	attemptCancel    context.CancelFunc
	lastActivity     time.Time
	lastPong         time.Time

	connectCh    chan chan error
	disconnectCh chan chan error
	events       chan connEvent

	runCancel context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewStreamClient creates a feed client that writes into store. Pass a nil
// store to create a private one, and a nil config for defaults.
func NewStreamClient(store *Store, config *StreamConfig) *StreamClient {
	cfg := StreamConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.defaults()
	if store == nil {
		store = NewStore()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sc := &StreamClient{
		config:       &cfg,
		store:        store,
		log:          cfg.Logger,
		recon:        newReconnector(&cfg),
		state:        StateIdle,
		connectCh:    make(chan chan error, 1),
		disconnectCh: make(chan chan error),
		events:       make(chan connEvent, 16),
		runCancel:    cancel,
		done:         make(chan struct{}),
	}
	go sc.run(runCtx)
	return sc
}

// Store returns the state container this client writes into.
func (sc *StreamClient) Store() *Store {
	return sc.store
}

// State returns the current lifecycle state.
func (sc *StreamClient) State() StreamState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// LastActivity returns the arrival time of the most recent inbound frame.
func (sc *StreamClient) LastActivity() time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastActivity
}

// LastPong returns the arrival time of the most recent pong frame. A missing
// pong is observable here but never closes the connection by itself.
func (sc *StreamClient) LastPong() time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastPong
}

// Connect requests that the feed be opened and waits for the first attempt
// to resolve. Calls while a connection is open or an attempt is pending are
// no-ops. When the dial fails its error is returned and, unless reconnection
// is disabled, recovery continues in the background under the backoff
// policy; ctx only bounds the wait, not the background recovery.
func (sc *StreamClient) Connect(ctx context.Context) error {
	ack := make(chan error, 1)
	select {
	case sc.connectCh <- ack:
	case <-sc.done:
		return fmt.Errorf("stream client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack:
		return err
	case <-sc.done:
		return fmt.Errorf("stream client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the feed with the normal-closure code, cancels any
// pending reconnect, and resets the retry counter. Reconnection is
// suppressed for this closure only; the client stays usable and a later
// Connect opens a fresh cycle.
func (sc *StreamClient) Disconnect() error {
	sc.mu.Lock()
	sc.intentionalClose = true
	if sc.attemptCancel != nil {
		sc.attemptCancel()
	}
	sc.mu.Unlock()

	ack := make(chan error, 1)
	select {
	case sc.disconnectCh <- ack:
	case <-sc.done:
		return nil
	}
	select {
	case err := <-ack:
		return err
	case <-sc.done:
		return nil
	}
}

// Close tears the client down: pending timers are cancelled, an open socket
// is closed with the normal-closure code, and the run loop exits. The client
// cannot be reused afterward. Close is safe to call more than once.
func (sc *StreamClient) Close() error {
	sc.closeOnce.Do(func() {
		sc.mu.Lock()
		sc.intentionalClose = true
		if sc.attemptCancel != nil {
			sc.attemptCancel()
		}
		sc.mu.Unlock()
		sc.runCancel()
	})
	<-sc.done
	return nil
}

// Send serializes v and writes it to the feed if it is currently open.
func (sc *StreamClient) Send(ctx context.Context, v any) error {
	sc.mu.Lock()
	conn := sc.conn
	sc.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Ping sends one application-level ping frame. The matching pong shows up
// via LastPong.
func (sc *StreamClient) Ping(ctx context.Context) error {
	return sc.Send(ctx, map[string]string{"type": FramePing})
}

// ============================================================================
// Run loop
// ============================================================================

// run owns the whole connection lifecycle. Timers live only here, so a
// stopped timer can never fire an attempt after a disconnect or teardown.
func (sc *StreamClient) run(ctx context.Context) {
	defer close(sc.done)

	var (
		reconnect *time.Timer
		heartbeat *time.Ticker
	)
	reconnectC := func() <-chan time.Time {
		if reconnect == nil {
			return nil
		}
		return reconnect.C
	}
	heartbeatC := func() <-chan time.Time {
		if heartbeat == nil {
			return nil
		}
		return heartbeat.C
	}
	stopTimers := func() {
		if reconnect != nil {
			reconnect.Stop()
			reconnect = nil
		}
		if heartbeat != nil {
			heartbeat.Stop()
			heartbeat = nil
		}
	}

	scheduleOrFail := func() {
		if sc.config.DisableReconnect {
			return
		}
		if sc.recon.shouldReconnect() {
			delay := sc.recon.nextDelay()
			sc.log.Info("reconnect scheduled",
				zap.Int("attempt", sc.recon.attempt),
				zap.Duration("delay", delay))
			reconnect = time.NewTimer(delay)
			return
		}
		sc.setState(StateFailed)
		sc.store.SetStatus(StatusError)
		sc.store.SetError(fmt.Sprintf("connection failed after %d attempts - please reload", sc.recon.attempt))
		sc.log.Error("reconnect attempts exhausted", zap.Int("attempts", sc.recon.attempt))
	}

	tryConnect := func() error {
		err := sc.attempt(ctx)
		if err == nil {
			heartbeat = time.NewTicker(sc.config.HeartbeatInterval)
			return nil
		}
		sc.mu.Lock()
		intentional := sc.intentionalClose
		sc.mu.Unlock()
		if !intentional && ctx.Err() == nil {
			scheduleOrFail()
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			stopTimers()
			sc.mu.Lock()
			hadConn := sc.conn != nil
			sc.mu.Unlock()
			sc.closeConn(websocket.StatusNormalClosure, "client shutdown")
			if hadConn {
				sc.setState(StateDisconnected)
				sc.store.SetStatus(StatusDisconnected)
			}
			return

		case ack := <-sc.connectCh:
			sc.mu.Lock()
			busy := sc.state == StateConnected || sc.state == StateConnecting
			sc.mu.Unlock()
			if busy {
				ack <- nil
				continue
			}
			stopTimers()
			if sc.State() == StateFailed {
				sc.recon.reset()
			}
			ack <- tryConnect()

		case ack := <-sc.disconnectCh:
			stopTimers()
			err := sc.closeConn(websocket.StatusNormalClosure, "client disconnect")
			sc.recon.reset()
			sc.setState(StateDisconnected)
			sc.store.SetStatus(StatusDisconnected)
			sc.log.Info("feed disconnected by client")
			ack <- err

		case <-reconnectC():
			reconnect = nil
			tryConnect()

		case <-heartbeatC():
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := sc.Ping(pingCtx); err != nil {
				sc.log.Warn("heartbeat ping failed", zap.Error(err))
			}
			cancel()

		case ev := <-sc.events:
			if !sc.isCurrent(ev.conn) {
				continue
			}
			if ev.err == nil {
				sc.dispatch(ctx, ev.data)
				continue
			}

			// The live connection dropped.
			stopTimers()
			sc.clearConn()
			sc.mu.Lock()
			intentional := sc.intentionalClose
			sc.mu.Unlock()
			sc.setState(StateDisconnected)
			sc.store.SetStatus(StatusDisconnected)
			if intentional {
				continue
			}
			sc.log.Warn("feed connection lost", zap.Error(ev.err))
			sc.store.SetError("connection lost")
			scheduleOrFail()
		}
	}
}

// attempt dials the feed endpoint once, bounded by the dial timeout, and
// publishes the resulting transition.
func (sc *StreamClient) attempt(ctx context.Context) error {
	sc.mu.Lock()
	sc.intentionalClose = false
	sc.state = StateConnecting
	sc.mu.Unlock()
	sc.store.SetState(StateConnecting)
	sc.log.Debug("dialing feed", zap.String("url", sc.config.URL))

	dialCtx, cancel := context.WithTimeout(ctx, sc.config.DialTimeout)
	sc.mu.Lock()
	sc.attemptCancel = cancel
	sc.mu.Unlock()

	conn, _, err := websocket.Dial(dialCtx, sc.config.URL, &websocket.DialOptions{
		HTTPClient: sc.config.HTTPClient,
	})

	cancel()
	sc.mu.Lock()
	sc.attemptCancel = nil
	sc.mu.Unlock()

	if err != nil {
		sc.setState(StateDisconnected)
		sc.store.SetStatus(StatusDisconnected)
		sc.store.SetError(fmt.Sprintf("connection failed: %v", err))
		sc.log.Warn("feed dial failed", zap.String("url", sc.config.URL), zap.Error(err))
		return fmt.Errorf("failed to dial %s: %w", sc.config.URL, err)
	}

	sc.mu.Lock()
	sc.conn = conn
	sc.state = StateConnected
	sc.lastActivity = time.Now()
	sc.mu.Unlock()
	sc.store.SetState(StateConnected)

	sc.recon.reset()
	sc.store.SetStatus(StatusConnected)
	sc.store.ClearError()
	sc.log.Info("feed connected", zap.String("url", sc.config.URL))

	go sc.readLoop(ctx, conn)
	return nil
}

// readLoop forwards frames and the terminal read error to the run loop.
func (sc *StreamClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case sc.events <- connEvent{conn: conn, err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case sc.events <- connEvent{conn: conn, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (sc *StreamClient) setState(state StreamState) {
	sc.mu.Lock()
	sc.state = state
	sc.mu.Unlock()
	sc.store.SetState(state)
}

func (sc *StreamClient) isCurrent(conn *websocket.Conn) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return conn != nil && conn == sc.conn
}

func (sc *StreamClient) clearConn() {
	sc.mu.Lock()
	sc.conn = nil
	sc.mu.Unlock()
}

// closeConn closes and forgets the current socket, if any.
func (sc *StreamClient) closeConn(code websocket.StatusCode, reason string) error {
	sc.mu.Lock()
	conn := sc.conn
	sc.conn = nil
	sc.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(code, reason)
}

// ============================================================================
// Inbound dispatch
// ============================================================================

// dispatch routes one inbound frame by its type tag. A frame that fails to
// decode surfaces through the store's error field and is otherwise ignored;
// it never takes the connection down.
func (sc *StreamClient) dispatch(ctx context.Context, data []byte) {
	sc.mu.Lock()
	sc.lastActivity = time.Now()
	sc.mu.Unlock()

	var head frameHeader
	if err := json.Unmarshal(data, &head); err != nil {
		sc.log.Warn("malformed frame", zap.Error(err))
		sc.store.SetError("malformed frame from server")
		return
	}

	switch head.Type {
	case FrameRealtimeData:
		var f RealtimeDataFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		sc.store.ApplyRealtime(&f)

	case FrameSpectrumUpdate:
		var f SpectrumFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		sc.store.SetSpectrum(f.AudioSpectrum)

	case FrameSessionUpdate:
		var f SessionUpdateFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		if f.Session.ID == "" {
			sc.log.Warn("session_update without a session id")
			return
		}
		sc.store.PatchSession(f.Session)

	case FrameStatusUpdate:
		var f StatusUpdateFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		sc.store.SetStatus(f.Status)

	case FrameHeartbeat, FrameStats:
		var patch map[string]any
		if err := json.Unmarshal(data, &patch); err != nil {
			sc.softError(head.Type, err)
			return
		}
		delete(patch, "type")
		sc.store.MergeStats(patch)

	case FramePong:
		sc.mu.Lock()
		sc.lastPong = time.Now()
		sc.mu.Unlock()

	case FramePing:
		if err := sc.Send(ctx, map[string]string{"type": FramePong}); err != nil {
			sc.log.Debug("pong reply failed", zap.Error(err))
		}

	case FrameBroadcastStarted:
		var f BroadcastStartedFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		sc.store.SetCrystal(CrystalBroadcast{Active: true, Intention: f.Intention, StartedAt: f.StartedAt})

	case FrameRateBroadcast:
		var f RateBroadcastFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		sc.store.SetWaveRate(f.RateHz)

	case FrameWaveActive:
		var f WaveActiveFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		sc.store.SetWaveActive(f.Active)

	case FrameError:
		var f ErrorFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sc.softError(head.Type, err)
			return
		}
		sc.store.SetError(f.Message)

	default:
		sc.log.Debug("unknown frame type", zap.String("type", head.Type))
	}
}

func (sc *StreamClient) softError(frameType string, err error) {
	sc.log.Warn("malformed frame", zap.String("type", frameType), zap.Error(err))
	sc.store.SetError("malformed " + frameType + " frame")
}
