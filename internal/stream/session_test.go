package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyungseopkim/algorithm-trading/internal/gateway"
	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// fakeConn plays a script of messages after Subscribe, then reports fault
// (if any). Without a fault it stays open until closed.
type fakeConn struct {
	script []gateway.Message
	fault  error
	subErr error

	out    chan gateway.Message
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(fault error, script ...gateway.Message) *fakeConn {
	return &fakeConn{
		script: script,
		fault:  fault,
		out:    make(chan gateway.Message),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Subscribe(ctx context.Context, symbols []string) error {
	if c.subErr != nil {
		return c.subErr
	}
	go func() {
		for _, m := range c.script {
			select {
			case c.out <- m:
			case <-c.closed:
				return
			}
		}
		if c.fault != nil {
			c.errs <- c.fault
		}
	}()
	return nil
}

func (c *fakeConn) Messages() <-chan gateway.Message { return c.out }
func (c *fakeConn) Errors() <-chan error             { return c.errs }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeGateway hands out scripted connections in order. Once the script is
// exhausted it returns idle connections that never fault.
type fakeGateway struct {
	mu       sync.Mutex
	conns    []*fakeConn
	connErrs []error // Returned by Connect before consuming conns
	connects atomic.Int32
}

func (g *fakeGateway) Connect(ctx context.Context) (gateway.Conn, error) {
	g.connects.Add(1)

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.connErrs) > 0 {
		err := g.connErrs[0]
		g.connErrs = g.connErrs[1:]
		return nil, err
	}
	if len(g.conns) == 0 {
		return newFakeConn(nil), nil
	}
	c := g.conns[0]
	g.conns = g.conns[1:]
	return c, nil
}

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func barMsg(symbol string, ts time.Time) gateway.Message {
	return gateway.Message{
		Kind: gateway.KindBar,
		Bar: model.RawBar{
			Symbol:    symbol,
			Timestamp: ts.Format(time.RFC3339),
			Open:      "100",
			High:      "101",
			Low:       "99",
			Close:     "100.5",
			Volume:    json.Number(strconv.Itoa(ts.Minute() + 1)),
		},
	}
}

func testConfig() Config {
	return Config{
		Symbols: []string{"AAPL", "SPY"},
		Backoff: ConstantBackoff(time.Millisecond),
	}
}

func collect(t *testing.T, s *Session, n int) []model.BarRecord {
	t.Helper()
	var out []model.BarRecord
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case rec, ok := <-s.Bars():
			if !ok {
				t.Fatalf("bars closed after %d of %d", len(out), n)
			}
			out = append(out, rec)
		case <-timeout:
			t.Fatalf("timeout after %d of %d bars", len(out), n)
		}
	}
	return out
}

func TestSessionRedeliveryAfterReconnect(t *testing.T) {
	gw := &fakeGateway{conns: []*fakeConn{
		newFakeConn(errors.New("connection reset"),
			barMsg("AAPL", base),
		),
		newFakeConn(nil,
			gateway.Message{Kind: gateway.KindSubscription, Text: "[AAPL SPY]"},
			barMsg("AAPL", base.Add(-time.Minute)),
			barMsg("AAPL", base),
			barMsg("AAPL", base.Add(time.Minute)),
		),
	}}

	s := NewSession(gw, testConfig(), nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	got := collect(t, s, 2)
	assert.True(t, got[0].Timestamp.Equal(base))
	assert.True(t, got[1].Timestamp.Equal(base.Add(time.Minute)))

	require.Eventually(t, func() bool { return s.Stats().Duplicates == 2 }, time.Second, 5*time.Millisecond)

	st := s.Stats()
	assert.Equal(t, 2, st.Connects)
	assert.Equal(t, 1, st.Faults)
	assert.Equal(t, int64(2), st.Emitted)
	assert.Equal(t, Subscribed.String(), st.State)
}

func TestSessionStrictlyIncreasingAcrossCycles(t *testing.T) {
	const cycles = 8

	var conns []*fakeConn
	for i := 0; i < cycles; i++ {
		// Each connection replays the previous two minutes before new data.
		var script []gateway.Message
		for m := i*3 - 2; m <= i*3+2; m++ {
			if m < 0 {
				continue
			}
			ts := base.Add(time.Duration(m) * time.Minute)
			script = append(script, barMsg("AAPL", ts), barMsg("SPY", ts))
		}
		conns = append(conns, newFakeConn(errors.New("dropped"), script...))
	}

	gw := &fakeGateway{conns: conns}
	s := NewSession(gw, testConfig(), nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	// Minutes 0 .. cycles*3-1 for both symbols
	got := collect(t, s, 2*cycles*3)

	last := map[string]time.Time{}
	for _, rec := range got {
		if prev, ok := last[rec.Symbol]; ok {
			require.True(t, rec.Timestamp.After(prev), "%s: %v after %v", rec.Symbol, rec.Timestamp, prev)
		}
		last[rec.Symbol] = rec.Timestamp
	}
	assert.GreaterOrEqual(t, int(gw.connects.Load()), cycles)
}

func TestSessionFatalConnectError(t *testing.T) {
	gw := &fakeGateway{connErrs: []error{&gateway.ProviderError{Code: gateway.CodeAuthFailed, Message: "auth failed"}}}

	s := NewSession(gw, testConfig(), nil)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not close")
	}

	var fatal *FatalStreamError
	require.ErrorAs(t, s.Err(), &fatal)
	assert.Equal(t, Closed, s.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), gw.connects.Load(), "no reconnect after fatal error")

	_, ok := <-s.Bars()
	assert.False(t, ok, "bars channel should be closed")
}

func TestSessionFatalInBandError(t *testing.T) {
	gw := &fakeGateway{conns: []*fakeConn{
		newFakeConn(nil,
			barMsg("AAPL", base),
			gateway.Message{Kind: gateway.KindError, Code: gateway.CodeInsufficientSub, Text: "insufficient subscription"},
		),
	}}

	s := NewSession(gw, testConfig(), nil)
	require.NoError(t, s.Start(context.Background()))

	collect(t, s, 1)
	<-s.Done()

	var pe *gateway.ProviderError
	require.ErrorAs(t, s.Err(), &pe)
	assert.Equal(t, gateway.CodeInsufficientSub, pe.Code)
	assert.Equal(t, int32(1), gw.connects.Load())
}

func TestSessionRecoverableProviderError(t *testing.T) {
	gw := &fakeGateway{
		connErrs: []error{&gateway.ProviderError{Code: gateway.CodeConnectionLimit, Message: "connection limit exceeded"}},
		conns:    []*fakeConn{newFakeConn(nil, barMsg("AAPL", base))},
	}

	s := NewSession(gw, testConfig(), nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	got := collect(t, s, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, int32(2), gw.connects.Load())
}

func TestSessionStop(t *testing.T) {
	gw := &fakeGateway{}
	s := NewSession(gw, testConfig(), nil)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.State() == Subscribed }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.ErrorIs(t, s.Err(), ErrCancelled)
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.Equal(t, Closed, s.State())

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestSessionContextCancel(t *testing.T) {
	gw := &fakeGateway{connErrs: []error{errors.New("refused"), errors.New("refused"), errors.New("refused")}}
	cfg := testConfig()
	cfg.Backoff = ConstantBackoff(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(gw, cfg, nil)
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool { return s.State() == Degraded }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop during backoff")
	}
	assert.ErrorIs(t, s.Err(), ErrCancelled)
}

func TestSessionStopBeforeStart(t *testing.T) {
	s := NewSession(&fakeGateway{}, testConfig(), nil)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, Closed, s.State())
	assert.ErrorIs(t, s.Err(), ErrCancelled)
}

func TestSessionIdleTimeout(t *testing.T) {
	gw := &fakeGateway{conns: []*fakeConn{
		newFakeConn(nil, barMsg("SPY", base)),
		newFakeConn(nil, barMsg("SPY", base.Add(time.Minute))),
	}}
	cfg := testConfig()
	cfg.IdleTimeout = 30 * time.Millisecond

	s := NewSession(gw, cfg, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	got := collect(t, s, 2)
	assert.True(t, got[1].Timestamp.After(got[0].Timestamp))
	assert.GreaterOrEqual(t, s.Stats().Faults, 1)
}

func TestSessionDropsInvalidBars(t *testing.T) {
	bad := barMsg("AAPL", base)
	bad.Bar.Low = "200"

	gw := &fakeGateway{conns: []*fakeConn{
		newFakeConn(nil, bad, gateway.Message{Kind: gateway.KindSuccess, Text: "ok"}, barMsg("AAPL", base.Add(time.Minute))),
	}}

	s := NewSession(gw, testConfig(), nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	got := collect(t, s, 1)
	assert.True(t, got[0].Timestamp.Equal(base.Add(time.Minute)))

	st := s.Stats()
	assert.Equal(t, int64(1), st.Invalid)
	assert.Equal(t, int64(1), st.Control)
}

func TestSessionStartWithoutSymbols(t *testing.T) {
	s := NewSession(&fakeGateway{}, Config{Symbols: []string{" ", ""}}, nil)
	assert.Error(t, s.Start(context.Background()))
}
