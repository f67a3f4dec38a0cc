package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 5700
	DefaultPath        = "/onebot/v11/ws"
	DefaultCallTimeout = 15 * time.Second
	DefaultRebootGrace = 10 * time.Second
)

// PlatformAdapterOB11 accepts the reverse websocket of a OneBot11 gateway.
// Only one gateway connection is active at a time; a newer one replaces it.
type PlatformAdapterOB11 struct {
	Host        string
	Port        int
	Path        string
	AccessToken string

	CallTimeout   time.Duration
	AutoReconnect bool
	RebootGrace   time.Duration

	// RateLimit caps outbound calls per second, 0 means unlimited.
	RateLimit float64
	RateBurst int

	callback AdapterCallback

	state   atomic.Int32
	session atomic.Pointer[ob11Session]
	reboot  atomic.Bool
	selfID  atomic.Int64
	bootAt  atomic.Int64

	requestSeq atomic.Uint64
	pending    pendingTable

	limiterOnce sync.Once
	limiter     *rate.Limiter

	mu   sync.Mutex
	stop context.CancelFunc
}

// ob11Session wraps one accepted websocket connection.
type ob11Session struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newOB11Session(conn *websocket.Conn) *ob11Session {
	return &ob11Session{id: uuid.NewString(), conn: conn, done: make(chan struct{})}
}

func (s *ob11Session) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *ob11Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// SetCallback registers adapter callbacks. Call it before Serve.
func (pa *PlatformAdapterOB11) SetCallback(callback AdapterCallback) {
	pa.callback = callback
}

func (pa *PlatformAdapterOB11) State() State {
	return State(pa.state.Load())
}

func (pa *PlatformAdapterOB11) setState(s State) {
	old := State(pa.state.Swap(int32(s)))
	if old != s {
		zap.S().Named("adapter").Debugf("ob11: state %s -> %s", old, s)
	}
}

// IsAlive reports whether a gateway is connected and running.
func (pa *PlatformAdapterOB11) IsAlive() bool {
	return pa.State() == StateRunning
}

// SelfID is the account id announced by the current gateway.
func (pa *PlatformAdapterOB11) SelfID() int64 {
	return pa.selfID.Load()
}

// BootTime is when the current gateway was identified.
func (pa *PlatformAdapterOB11) BootTime() time.Time {
	ms := pa.bootAt.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (pa *PlatformAdapterOB11) Addr() string {
	host := pa.Host
	if host == "" {
		host = DefaultHost
	}
	port := pa.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (pa *PlatformAdapterOB11) path() string {
	if pa.Path == "" {
		return DefaultPath
	}
	return pa.Path
}

func (pa *PlatformAdapterOB11) callTimeout() time.Duration {
	if pa.CallTimeout <= 0 {
		return DefaultCallTimeout
	}
	return pa.CallTimeout
}

func (pa *PlatformAdapterOB11) rebootGrace() time.Duration {
	if pa.RebootGrace <= 0 {
		return DefaultRebootGrace
	}
	return pa.RebootGrace
}

func (pa *PlatformAdapterOB11) getLimiter() *rate.Limiter {
	pa.limiterOnce.Do(func() {
		if pa.RateLimit <= 0 {
			pa.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := pa.RateBurst
		if burst <= 0 {
			burst = 1
		}
		pa.limiter = rate.NewLimiter(rate.Limit(pa.RateLimit), burst)
	})
	return pa.limiter
}

// Serve listens for the gateway until ctx is done, or until the connection
// ends while AutoReconnect is off.
func (pa *PlatformAdapterOB11) Serve(ctx context.Context) error {
	log := zap.S().Named("adapter")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := pa.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ob11: listen %s: %w", addr, err)
	}

	server := &http.Server{Handler: pa.Handler(ctx)}
	pa.mu.Lock()
	pa.stop = cancel
	pa.mu.Unlock()

	pa.setState(StateConnecting)
	log.Infof("ob11: waiting for gateway on ws://%s%s", addr, pa.path())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			pa.setState(StateDisconnected)
			return fmt.Errorf("ob11: serve: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = server.Shutdown(shutdownCtx)

	if s := pa.session.Load(); s != nil {
		s.close()
	}
	pa.setState(StateDisconnected)
	return nil
}

// Close stops serving and drops the current connection.
func (pa *PlatformAdapterOB11) Close() {
	pa.shutdown()
	if s := pa.session.Load(); s != nil {
		s.close()
	}
}

func (pa *PlatformAdapterOB11) shutdown() {
	pa.mu.Lock()
	stop := pa.stop
	pa.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Disconnect drops the current connection, if any.
func (pa *PlatformAdapterOB11) Disconnect() {
	if s := pa.session.Load(); s != nil {
		s.close()
	}
}

// Reboot drops the connection; once in-flight work drains the adapter goes
// back to waiting for the gateway regardless of AutoReconnect.
func (pa *PlatformAdapterOB11) Reboot() {
	s := pa.session.Load()
	if s == nil {
		zap.S().Named("adapter").Warn("ob11: reboot requested without a connection")
		return
	}
	pa.reboot.Store(true)
	s.close()
}

// Handler serves the reverse websocket endpoint. ctx bounds every session it accepts.
func (pa *PlatformAdapterOB11) Handler(ctx context.Context) http.Handler {
	log := zap.S().Named("adapter")
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	if pa.State() == StateDisconnected {
		pa.setState(StateConnecting)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pa.path(), func(w http.ResponseWriter, r *http.Request) {
		if ctx.Err() != nil {
			http.Error(w, "adapter shutting down", http.StatusServiceUnavailable)
			return
		}

		if pa.AccessToken != "" {
			token := r.Header.Get("Authorization")
			token = strings.TrimPrefix(token, "Bearer ")
			token = strings.TrimPrefix(token, "Token ")
			if token == "" {
				token = r.URL.Query().Get("access_token")
			}
			if token != pa.AccessToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("ob11: websocket upgrade failed: %v", err)
			return
		}
		session := newOB11Session(conn)
		pa.setState(StateAccepted)

		selfID, err := identify(r)
		if err != nil {
			log.Errorf("ob11: reject connection from %s: %v", r.RemoteAddr, err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "missing X-Self-ID"),
				time.Now().Add(time.Second))
			session.close()
			if pa.session.Load() != nil {
				pa.setState(StateRunning)
			} else {
				pa.setState(StateConnecting)
			}
			if pa.callback != nil {
				pa.callback.OnError(err)
			}
			return
		}

		pa.run(ctx, session, selfID)
	})
	return mux
}

func identify(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-Self-ID")
	if raw == "" {
		return 0, fmt.Errorf("%w: missing X-Self-ID header", ErrConnectionFailed)
	}
	id, err := parseInt64(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: bad X-Self-ID %q", ErrConnectionFailed, raw)
	}
	return id, nil
}

func (pa *PlatformAdapterOB11) run(ctx context.Context, session *ob11Session, selfID int64) {
	log := zap.S().Named("adapter")

	if old := pa.session.Swap(session); old != nil {
		log.Infof("ob11: session %s replaced by %s", old.id, session.id)
		old.close()
		pa.pending.failAll(fmt.Errorf("%w: replaced by a newer connection", ErrSessionClosed))
	}

	pa.selfID.Store(selfID)
	pa.bootAt.Store(time.Now().UnixMilli())
	pa.setState(StateIdentified)
	log.Infof("ob11: gateway %d connected, session %s", selfID, session.id)
	if pa.callback != nil {
		pa.callback.OnConnect(selfID)
	}

	pa.setState(StateRunning)
	err := pa.consumeSession(ctx, session)

	if !pa.session.CompareAndSwap(session, nil) {
		log.Debugf("ob11: replaced session %s ended: %v", session.id, err)
		return
	}

	pa.setState(StateDisconnecting)
	session.close()
	pa.pending.failAll(ErrSessionClosed)
	log.Infof("ob11: gateway %d disconnected: %v", selfID, err)
	if pa.callback != nil {
		pa.callback.OnDisconnect(err)
	}

	switch {
	case pa.reboot.CompareAndSwap(true, false):
		pa.setState(StateRebooting)
		if pa.callback != nil {
			drainCtx, cancel := context.WithTimeout(context.Background(), pa.rebootGrace())
			pa.callback.OnReboot(drainCtx)
			cancel()
		}
		pa.setState(StateConnecting)
	case pa.AutoReconnect && ctx.Err() == nil:
		pa.setState(StateConnecting)
	default:
		pa.setState(StateDisconnected)
		pa.shutdown()
	}
}

func (pa *PlatformAdapterOB11) consumeSession(ctx context.Context, session *ob11Session) error {
	log := zap.S().Named("adapter")

	go func() {
		select {
		case <-ctx.Done():
			session.close()
		case <-session.done:
		}
	}()

	for {
		_, payload, err := session.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := pa.dispatchFrame(payload); err != nil {
			log.Warnf("ob11: drop frame: %v", err)
		}
	}
}

func (pa *PlatformAdapterOB11) dispatchFrame(payload []byte) error {
	log := zap.S().Named("adapter")

	f, err := decodeFrame(payload)
	if err != nil {
		return err
	}

	switch {
	case f.isEvent():
		if pa.callback != nil {
			pa.callback.OnEvent(f.raw)
		}
	case f.HasEcho:
		if !pa.pending.resolve(f.Echo, f.response()) {
			log.Debugf("ob11: discard response for unknown echo %s", f.Echo)
		}
	default:
		log.Debugf("ob11: ignore frame without post_type or echo")
	}
	return nil
}

// CallAction sends one action and waits for its correlated response.
// A timeout returns ErrTimedOut; a failed status returns *ActionFailedError.
func (pa *PlatformAdapterOB11) CallAction(ctx context.Context, action string, params any) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	session := pa.session.Load()
	if session == nil {
		return nil, ErrNotConnected
	}

	if err := pa.getLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	echo := fmt.Sprintf("muzi-%d", pa.requestSeq.Add(1))
	slot, err := pa.pending.register(echo)
	if err != nil {
		return nil, err
	}

	payload, err := encodeCall(action, params, echo)
	if err != nil {
		pa.pending.cancel(echo)
		return nil, fmt.Errorf("ob11: encode %s: %w", action, err)
	}
	if err := session.write(payload); err != nil {
		pa.pending.cancel(echo)
		return nil, fmt.Errorf("ob11: write %s: %w", action, err)
	}

	resp, err := pa.pending.await(ctx, echo, slot, pa.callTimeout())
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			zap.S().Named("adapter").Warnf("ob11: %s got no response", action)
		}
		return nil, err
	}
	if resp.Failed() {
		return nil, &ActionFailedError{Action: action, Response: resp}
	}
	return resp.Data, nil
}

func parseInt64(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("ob11 adapter: empty numeric id")
	}
	return strconv.ParseInt(trimmed, 10, 64)
}
