package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kyungseopkim/algorithm-trading/internal/gateway"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// Config configures a Session.
type Config struct {
	Symbols          []string
	SubscribeTimeout time.Duration // Wait for the subscription ack; 0 = no extra limit
	IdleTimeout      time.Duration // Fault when no message arrives in this window; 0 = disabled
	Backoff          Backoff       // nil = ExponentialBackoff with defaults, time-seeded
	BufferSize       int           // Bars channel buffer
}

// Stats is a snapshot of session counters.
type Stats struct {
	SessionID  string    `json:"session_id"`
	State      string    `json:"state"`
	Connects   int       `json:"connects"`
	Reconnects int       `json:"reconnects"`
	Faults     int       `json:"faults"`
	Emitted    int64     `json:"emitted"`
	Duplicates int64     `json:"duplicates"`
	Invalid    int64     `json:"invalid"`
	Control    int64     `json:"control"`
	LastBarAt  time.Time `json:"last_bar_at,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// Session is a long-running bar subscription. Bars are delivered on Bars()
// in per-symbol strictly increasing timestamp order; the channel closes when
// the session reaches Closed.
type Session struct {
	gw     gateway.StreamGateway
	cfg    Config
	logger *slog.Logger
	id     string

	bars chan model.BarRecord
	done chan struct{}

	cancel context.CancelFunc

	mu      sync.RWMutex
	state   State
	err     error
	stats   Stats
	started bool

	cursor *Cursor // Owned by run
}

// NewSession creates a session. It does not connect until Start.
func NewSession(gw gateway.StreamGateway, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backoff == nil {
		cfg.Backoff = NewExponentialBackoff(DefaultBaseDelay, DefaultMaxDelay, uint64(time.Now().UnixNano()))
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	cfg.Symbols = model.ParseSymbols(strings.Join(cfg.Symbols, ","))

	id := uuid.NewString()
	return &Session{
		gw:     gw,
		cfg:    cfg,
		logger: logger.With("session_id", id),
		id:     id,
		bars:   make(chan model.BarRecord, cfg.BufferSize),
		done:   make(chan struct{}),
		state:  Disconnected,
		stats:  Stats{SessionID: id},
		cursor: NewCursor(),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Bars returns the output channel.
func (s *Session) Bars() <-chan model.BarRecord { return s.bars }

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the terminal error: nil while running, ErrCancelled after a
// caller stop, or a *FatalStreamError.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.State = s.state.String()
	return st
}

// Start launches the session loop.
func (s *Session) Start(ctx context.Context) error {
	if len(s.cfg.Symbols) == 0 {
		return errors.New("no symbols to subscribe")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.fire(EventStart); err != nil {
		return err
	}

	s.logger.Info("stream session starting", "symbols", s.cfg.Symbols)

	go s.run(ctx)
	return nil
}

// Stop cancels the session and waits for it to close or for ctx to expire.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = true
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		// Never ran: close directly.
		s.fire(EventCancel)
		s.fire(EventClosed)
		s.finish(ErrCancelled)
		return nil
	}

	if cancel != nil {
		cancel()
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout, session still closing")
		return ctx.Err()
	}
}

// fire applies an event to the current state.
func (s *Session) fire(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Transition(s.state, e)
	if err != nil {
		return err
	}
	if next != s.state {
		s.logger.Debug("state change", "from", s.state, "to", next, "event", e)
	}
	s.state = next
	return nil
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	close(s.bars)
	close(s.done)
}

func (s *Session) update(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// run is the session event loop. It owns every connection it opens.
func (s *Session) run(ctx context.Context) {
	attempt := 0
	for {
		err := s.connectAndConsume(ctx)

		switch {
		case ctx.Err() != nil:
			s.fire(EventCancel)
			s.fire(EventClosed)
			s.logger.Info("stream session stopped", "emitted", s.Stats().Emitted)
			s.finish(ErrCancelled)
			return

		case gateway.IsFatal(err):
			fatal := &FatalStreamError{Err: err}
			s.update(func(st *Stats) { st.LastError = err.Error() })
			s.fire(EventFatal)
			s.logger.Error("fatal stream error, not reconnecting", "error", err)
			s.finish(fatal)
			return
		}

		if s.State() == Subscribed {
			attempt = 0
		}
		attempt++

		fault := &TransportFault{Attempt: attempt, Err: err}
		s.update(func(st *Stats) {
			st.Faults++
			st.LastError = err.Error()
		})
		s.fire(EventFault)

		delay := s.cfg.Backoff.Delay(attempt)
		s.logger.Warn("stream degraded, reconnecting",
			"error", fault,
			"attempt", attempt,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			continue // Handled at the top of the loop
		case <-timer.C:
		}

		s.update(func(st *Stats) { st.Reconnects++ })
		s.fire(EventRetry)
	}
}

// connectAndConsume runs one connection from dial to failure. It returns
// the reason the connection ended.
func (s *Session) connectAndConsume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := s.gw.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	subCtx := ctx
	if s.cfg.SubscribeTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, s.cfg.SubscribeTimeout)
		defer cancel()
	}
	if err := conn.Subscribe(subCtx, s.cfg.Symbols); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.update(func(st *Stats) { st.Connects++ })
	if err := s.fire(EventSubscribed); err != nil {
		return err
	}
	s.logger.Info("stream subscribed", "symbols", len(s.cfg.Symbols))

	return s.consume(ctx, conn)
}

func (s *Session) consume(ctx context.Context, conn gateway.Conn) error {
	var idle <-chan time.Time
	var timer *time.Timer
	if s.cfg.IdleTimeout > 0 {
		timer = time.NewTimer(s.cfg.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idle:
			return ErrIdle

		case err := <-conn.Errors():
			return err

		case msg, ok := <-conn.Messages():
			if !ok {
				select {
				case err := <-conn.Errors():
					return err
				default:
					return errors.New("message stream closed")
				}
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.cfg.IdleTimeout)
			}
			if err := s.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// handle processes one provider message. It returns an error only when the
// connection must end.
func (s *Session) handle(ctx context.Context, msg gateway.Message) error {
	switch msg.Kind {
	case gateway.KindBar:
		rec, err := model.Normalize(msg.Bar)
		if err != nil {
			s.update(func(st *Stats) { st.Invalid++ })
			s.logger.Warn("dropping invalid bar", "error", err)
			return nil
		}
		if !s.cursor.Advance(rec.Symbol, rec.Timestamp) {
			s.update(func(st *Stats) { st.Duplicates++ })
			s.logger.Debug("dropping redelivered bar",
				"symbol", rec.Symbol,
				"timestamp", rec.Timestamp,
			)
			return nil
		}
		select {
		case s.bars <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.update(func(st *Stats) {
			st.Emitted++
			st.LastBarAt = rec.Timestamp
		})
		return nil

	case gateway.KindError:
		return msg.Err()

	default:
		s.update(func(st *Stats) { st.Control++ })
		s.logger.Debug("control message", "kind", msg.Kind, "text", msg.Text)
		return nil
	}
}
