package rcon

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/rconctl/internal/protocol/frame"
	"github.com/danmuck/rconctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/danmuck/rconctl/internal/rcon"

// State is the connection lifecycle position of a Client.
type State int32

const (
	StateUnconfigured State = iota
	StateDisconnected
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateDisconnected:
		return "disconnected"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Config struct {
	Session session.Config
	Limits  frame.Limits
	// OnFailure receives every classified send failure. It runs on the calling
	// goroutine and must not block.
	OnFailure func(Failure)
	Metrics   *Metrics
	Tracer    trace.Tracer
}

func DefaultConfig() Config {
	return Config{
		Session: session.DefaultConfig(),
		Limits:  frame.DefaultLimits(),
	}
}

// Client owns one RCON connection at a time and reconnects lazily on send.
type Client struct {
	cfg    Config
	tracer trace.Tracer

	// mu is the exclusive write section: reconnect checks, id assignment and
	// frame writes happen under it, waits do not.
	mu         sync.Mutex
	configured bool
	ready      bool
	address    string
	password   string
	conn       net.Conn
	corr       *Correlator
	nextID     int32
	failures   int
	rng        *rand.Rand

	state   atomic.Int32
	current atomic.Pointer[Correlator]
}

func NewClient(cfg Config) *Client {
	cfg.Session = cfg.Session.WithDefaults()
	if cfg.Limits.MaxPayloadBytes <= 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Client{
		cfg:    cfg,
		tracer: tracer,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State reports the lifecycle state. A ready client whose reader has died is
// reported as disconnected; the next send reconnects it.
func (c *Client) State() State {
	s := State(c.state.Load())
	if s == StateReady {
		if corr := c.current.Load(); corr != nil && corr.Halted() {
			return StateDisconnected
		}
	}
	return s
}

// Address is the configured host:port, empty until configured.
func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Configure stores the target and opens the connection. Only the first call
// takes effect; later calls return nil without looking at their arguments. A
// failed open leaves the client unconfigured so Configure may be called again.
func (c *Client) Configure(address string, port int, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		return nil
	}
	if port <= 0 {
		port = session.DefaultPort
	}
	c.address = net.JoinHostPort(strings.TrimSpace(address), strconv.Itoa(port))
	c.password = password
	c.configured = true
	c.setState(StateDisconnected)
	return c.open(context.Background())
}

// Reconfigure repeats the last Configure after a failed open left the client
// unconfigured. It is a no-op on a configured client and returns
// ErrNotConfigured if Configure was never called.
func (c *Client) Reconfigure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		return nil
	}
	if c.address == "" {
		return ErrNotConfigured
	}
	c.configured = true
	c.setState(StateDisconnected)
	return c.open(ctx)
}

// Open connects and authenticates if the client is configured but not ready.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured {
		return ErrNotConfigured
	}
	return c.open(ctx)
}

// open must be called with mu held.
func (c *Client) open(ctx context.Context) (err error) {
	if c.ready {
		if c.conn != nil && c.corr != nil && !c.corr.Halted() {
			return nil
		}
		c.teardown()
	}
	defer func() {
		if err != nil {
			c.teardown()
			c.configured = false
			c.setState(StateUnconfigured)
			c.cfg.Metrics.connectAttempt("failure")
			log.Warn().Msgf("rcon.Client open addr=%q failures=%d err=%v", c.address, c.failures+1, err)
		} else {
			c.cfg.Metrics.connectAttempt("success")
			log.Debug().Msgf("rcon.Client open addr=%q ready", c.address)
		}
		c.pauseAfterOpen(err == nil)
	}()

	conn, err := c.dial(ctx)
	if err != nil {
		return NewConnectionError("dial "+c.address, err)
	}
	corr := NewCorrelator(c.cfg.Limits, c.cfg.Metrics)
	if err := corr.Start(conn); err != nil {
		_ = conn.Close()
		return NewConnectionError("start reader", err)
	}
	c.conn = conn
	c.corr = corr
	c.current.Store(corr)

	if c.password != "" {
		id := c.assignID()
		if err := c.writeFrame(ctx, frame.Login, c.password, id); err != nil {
			return NewConnectionError("login write", err)
		}
		if ans := corr.WaitFor(ctx, id, c.cfg.Session.RequestTimeout); ans.IsEmpty() {
			return NewConnectionError("login rejected by "+c.address, ErrAuthFailed)
		}
	}

	c.ready = true
	c.setState(StateReady)
	return nil
}

// pauseAfterOpen bounds reconnect storms. The default policy is a flat 100ms.
func (c *Client) pauseAfterOpen(ok bool) {
	delay := session.NextReconnectDelay(c.cfg.Session.ReconnectDelay, c.failures, c.rng)
	if ok {
		c.failures = 0
	} else {
		c.failures++
	}
	if delay > 0 {
		time.Sleep(delay)
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if err := c.cfg.Session.ValidateClientTransport(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.cfg.Session.DialTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, err
	}
	if !c.cfg.Session.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := c.clientTLSConfig()
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.Session.DialTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) clientTLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.cfg.Session.TLS.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(c.cfg.Session.TLS.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(c.address)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(c.cfg.Session.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("rcon: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// checkAndReconnect must be called with mu held.
func (c *Client) checkAndReconnect(ctx context.Context) error {
	if !c.configured {
		return ErrNotConfigured
	}
	if c.ready && c.conn != nil && c.corr != nil && !c.corr.Halted() {
		return nil
	}
	c.teardown()
	if err := c.open(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// assignID hands out non-negative ids only; -1 belongs to server-initiated frames.
func (c *Client) assignID() int32 {
	c.nextID++
	if c.nextID < 0 {
		c.nextID = 0
	}
	return c.nextID
}

func (c *Client) writeFrame(ctx context.Context, typ frame.MessageType, command string, id int32) error {
	deadline := time.Now().Add(c.cfg.Session.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return frame.WriteFrame(c.conn, typ, command, id)
}

// writeRequest runs the exclusive half of a send: reconnect if needed, assign an
// id and write the frame. The returned Correlator is the one the answer will
// arrive on.
func (c *Client) writeRequest(ctx context.Context, typ frame.MessageType, command string) (int32, *Correlator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkAndReconnect(ctx); err != nil {
		return frame.InvalidRequestID, nil, err
	}
	id := c.assignID()
	if err := c.writeFrame(ctx, typ, command, id); err != nil {
		c.teardown()
		return id, nil, fmt.Errorf("%w: write request_id=%d: %v", ErrIO, id, err)
	}
	return id, c.corr, nil
}

// Exec sends one frame and waits for its correlated answer. Unlike Send it
// returns the classified error.
func (c *Client) Exec(ctx context.Context, typ frame.MessageType, command string) (Answer, error) {
	ctx, span := c.tracer.Start(ctx, "rcon.Exec", trace.WithAttributes(
		attribute.String("rcon.type", typ.String()),
	))
	defer span.End()

	start := time.Now()
	id, corr, err := c.writeRequest(ctx, typ, command)
	span.SetAttributes(attribute.Int("rcon.request_id", int(id)))
	if err == nil {
		ans := corr.WaitFor(ctx, id, c.cfg.Session.RequestTimeout)
		if !ans.IsEmpty() {
			c.cfg.Metrics.observeRequest(typ, outcomeOK, time.Since(start))
			span.SetAttributes(attribute.Int("rcon.answer_bytes", len(ans.Data)))
			return ans, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("request_id=%d: %w", id, ctxErr)
		} else {
			err = fmt.Errorf("%w: request_id=%d after %v", ErrTimeout, id, c.cfg.Session.RequestTimeout)
		}
	}

	kind := ClassifyError(err)
	c.cfg.Metrics.observeRequest(typ, string(kind), time.Since(start))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	return EmptyAnswer, &sendError{failure: Failure{
		Kind:      kind,
		RequestID: id,
		Type:      typ,
		Command:   command,
		Err:       err,
	}}
}

// SendAnswer is the blocking send that never fails: any error is logged,
// reported to OnFailure and turned into EmptyAnswer.
func (c *Client) SendAnswer(typ frame.MessageType, command string) Answer {
	ans, err := c.Exec(context.Background(), typ, command)
	if err != nil {
		c.report(err)
		return EmptyAnswer
	}
	return ans
}

// Send returns the answer text, or "" when unconfigured, failed or timed out.
func (c *Client) Send(typ frame.MessageType, command string) string {
	return c.SendAnswer(typ, command).Text()
}

// FireAndForget sends without handing back the answer. The wait for it is only
// detached when the server is known to answer out of order; otherwise the call
// blocks like Send and discards the result.
func (c *Client) FireAndForget(typ frame.MessageType, command string) {
	if !c.cfg.Session.ConcurrentRequests {
		_ = c.SendAnswer(typ, command)
		return
	}

	id, corr, err := c.writeRequest(context.Background(), typ, command)
	if err != nil {
		c.report(&sendError{failure: Failure{
			Kind:      ClassifyError(err),
			RequestID: id,
			Type:      typ,
			Command:   command,
			Err:       err,
		}})
		return
	}
	go func() {
		if ans := corr.WaitFor(context.Background(), id, c.cfg.Session.RequestTimeout); ans.IsEmpty() {
			log.Debug().Msgf("rcon.Client fire-and-forget request_id=%d unanswered", id)
		}
	}()
}

func (c *Client) report(err error) {
	var se *sendError
	if !errors.As(err, &se) {
		se = &sendError{failure: Failure{Kind: ClassifyError(err), RequestID: frame.InvalidRequestID, Err: err}}
	}
	f := se.failure
	if f.Kind == FailureNotConfigured {
		log.Debug().Msgf("rcon.Client send type=%s skipped: not configured", f.Type)
	} else {
		log.Warn().Msgf("rcon.Client send type=%s request_id=%d kind=%s err=%v", f.Type, f.RequestID, f.Kind, f.Err)
	}
	if c.cfg.OnFailure != nil {
		c.cfg.OnFailure(f)
	}
}

// Close releases the connection. The client stays configured and reconnects on
// the next send. Safe to call on a client that never connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown()
	return nil
}

// teardown must be called with mu held. Secondary close errors are dropped.
func (c *Client) teardown() {
	c.ready = false
	if c.corr != nil {
		c.corr.Stop()
		c.corr.Store().Reset()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.corr = nil
	c.current.Store(nil)
	if c.configured {
		c.setState(StateDisconnected)
	} else {
		c.setState(StateUnconfigured)
	}
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// sendError carries the classified failure through Exec's error return.
type sendError struct {
	failure Failure
}

func (e *sendError) Error() string {
	return e.failure.Err.Error()
}

func (e *sendError) Unwrap() error {
	return e.failure.Err
}

// FailureOf extracts the classified failure from an Exec error.
func FailureOf(err error) (Failure, bool) {
	var se *sendError
	if errors.As(err, &se) {
		return se.failure, true
	}
	return Failure{}, false
}
