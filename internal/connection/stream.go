package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/auth"
	"github.com/kyungseopkim/algorithm-trading/internal/gateway"
)

// Stream opens authenticated bar stream connections.
type Stream struct {
	cfg    StreamConfig
	creds  auth.Credentials
	logger *slog.Logger
}

var _ gateway.StreamGateway = (*Stream)(nil)

// NewStream creates a stream gateway. cfg.Client.URL must include the feed.
func NewStream(cfg StreamConfig, creds auth.Credentials, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultStreamConfig()
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = def.AuthTimeout
	}
	if cfg.SubTimeout <= 0 {
		cfg.SubTimeout = def.SubTimeout
	}
	if cfg.Client.BufferSize <= 0 {
		cfg.Client.BufferSize = def.Client.BufferSize
	}
	return &Stream{cfg: cfg, creds: creds, logger: logger}
}

// Connect dials, waits for the welcome message and authenticates.
func (s *Stream) Connect(ctx context.Context) (gateway.Conn, error) {
	c := NewClient(s.cfg.Client, s.logger)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.Client.URL, err)
	}

	sc := &streamConn{
		client: c,
		cfg:    s.cfg,
		logger: s.logger,
		out:    make(chan gateway.Message, s.cfg.Client.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	if err := sc.handshake(ctx, s.creds); err != nil {
		c.Close()
		return nil, err
	}
	return sc, nil
}

// streamConn implements gateway.Conn over one Client.
type streamConn struct {
	client Client
	cfg    StreamConfig
	logger *slog.Logger

	out  chan gateway.Message
	errs chan error
	done chan struct{}

	// Messages read before the pump starts (bars racing the subscription ack)
	pending []gateway.Message

	mu         sync.Mutex
	subscribed bool
	closed     bool
}

func (sc *streamConn) handshake(ctx context.Context, creds auth.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, sc.cfg.AuthTimeout)
	defer cancel()

	if _, err := sc.await(ctx, func(m gateway.Message) bool {
		return m.Kind == gateway.KindSuccess && m.Text == msgConnected
	}); err != nil {
		return fmt.Errorf("await connected: %w", err)
	}

	data, err := json.Marshal(authCommand{Action: "auth", Key: creds.KeyID, Secret: creds.SecretKey})
	if err != nil {
		return err
	}
	if err := sc.client.Send(data); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	if _, err := sc.await(ctx, func(m gateway.Message) bool {
		return m.Kind == gateway.KindSuccess && m.Text == msgAuthenticated
	}); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	sc.logger.Debug("stream authenticated")
	return nil
}

// Subscribe requests bars and waits for the acknowledgment, then starts
// delivering messages.
func (sc *streamConn) Subscribe(ctx context.Context, symbols []string) error {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return ErrAlreadyClosed
	}
	if sc.subscribed {
		sc.mu.Unlock()
		return ErrAlreadySubscribe
	}
	sc.subscribed = true
	sc.mu.Unlock()

	data, err := json.Marshal(subscribeCommand{Action: "subscribe", Bars: symbols})
	if err != nil {
		return err
	}
	if err := sc.client.Send(data); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sc.cfg.SubTimeout)
	defer cancel()

	ack, err := sc.await(ctx, func(m gateway.Message) bool {
		return m.Kind == gateway.KindSubscription
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	sc.logger.Info("subscribed", "bars", ack.Text)

	go sc.pump()
	return nil
}

// await reads frames until match returns true. Provider errors abort the
// wait. Bars seen meanwhile are kept for delivery.
func (sc *streamConn) await(ctx context.Context, match func(gateway.Message) bool) (gateway.Message, error) {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return gateway.Message{}, ErrTimeout
			}
			return gateway.Message{}, ctx.Err()
		case err := <-sc.client.Errors():
			return gateway.Message{}, err
		case raw, ok := <-sc.client.Messages():
			if !ok {
				return gateway.Message{}, ErrNotConnected
			}
			msgs, err := DecodeFrame(raw.Data, raw.ReceivedAt)
			if err != nil {
				sc.logger.Warn("undecodable frame", "error", err)
				continue
			}
			for i, m := range msgs {
				if m.Kind == gateway.KindError {
					return gateway.Message{}, m.Err()
				}
				if match(m) {
					sc.pending = append(sc.pending, msgs[i+1:]...)
					return m, nil
				}
				if m.Kind == gateway.KindBar {
					sc.pending = append(sc.pending, m)
				}
			}
		}
	}
}

// pump forwards decoded messages until the socket fails or Close is called.
func (sc *streamConn) pump() {
	defer close(sc.out)

	for _, m := range sc.pending {
		if !sc.emit(m) {
			return
		}
	}
	sc.pending = nil

	for {
		select {
		case <-sc.done:
			return
		case err := <-sc.client.Errors():
			sc.fail(err)
			return
		case raw := <-sc.client.Messages():
			msgs, err := DecodeFrame(raw.Data, raw.ReceivedAt)
			if err != nil {
				sc.logger.Warn("undecodable frame", "error", err)
				continue
			}
			for _, m := range msgs {
				if !sc.emit(m) {
					return
				}
			}
		}
	}
}

func (sc *streamConn) emit(m gateway.Message) bool {
	select {
	case sc.out <- m:
		return true
	case <-sc.done:
		return false
	}
}

func (sc *streamConn) fail(err error) {
	select {
	case sc.errs <- err:
	default:
	}
}

func (sc *streamConn) Messages() <-chan gateway.Message { return sc.out }

func (sc *streamConn) Errors() <-chan error { return sc.errs }

// Close stops delivery and closes the socket.
func (sc *streamConn) Close() error {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return nil
	}
	sc.closed = true
	sc.mu.Unlock()

	close(sc.done)
	return sc.client.Close()
}

// DecodeFrame parses one websocket frame into messages. A frame is either a
// JSON array of messages or a single message object.
func DecodeFrame(data []byte, receivedAt time.Time) ([]gateway.Message, error) {
	var wire []wireMessage
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		var one wireMessage
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		wire = []wireMessage{one}
	} else if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	msgs := make([]gateway.Message, 0, len(wire))
	for _, w := range wire {
		m := gateway.Message{ReceivedAt: receivedAt}
		switch w.T {
		case typeBar:
			m.Kind = gateway.KindBar
			m.Bar = w.RawBar
		case typeSuccess:
			m.Kind = gateway.KindSuccess
			m.Text = w.Msg
		case typeSubscription:
			m.Kind = gateway.KindSubscription
			m.Text = fmt.Sprint(w.Bars)
		case typeError:
			m.Kind = gateway.KindError
			m.Code = w.Code
			m.Text = w.Msg
		default:
			m.Kind = gateway.KindOther
			m.Text = w.T
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
