package connection

import (
	"errors"
	"strings"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrTimeout          = errors.New("operation timeout")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrClosedByPeer     = errors.New("connection closed by peer")
	ErrAlreadySubscribe = errors.New("already subscribed")
)

// DefaultStreamURL is the stock data stream root; the feed name is appended.
const DefaultStreamURL = "wss://stream.data.alpaca.markets/v2"

// Frame is one websocket text frame and its local receive time.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

// authCommand authenticates a freshly opened stream.
type authCommand struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// subscribeCommand requests minute bars for a set of symbols.
type subscribeCommand struct {
	Action string   `json:"action"`
	Bars   []string `json:"bars"`
}

// Wire message types (the "T" field).
const (
	typeSuccess      = "success"
	typeError        = "error"
	typeSubscription = "subscription"
	typeBar          = "b"
)

// Control texts carried in success messages.
const (
	msgConnected     = "connected"
	msgAuthenticated = "authenticated"
)

// wireMessage is one element of a frame. Frames are JSON arrays; a single
// frame may mix control messages and bars.
type wireMessage struct {
	T    string   `json:"T"`
	Msg  string   `json:"msg"`
	Code int      `json:"code"`
	Bars []string `json:"bars"`
	model.RawBar
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full stream URL including the feed (e.g., wss://stream.data.alpaca.markets/v2/iex)
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Websocket upgrade deadline
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       1000,
	}
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	Client      ClientConfig
	AuthTimeout time.Duration // Wait for "connected" and "authenticated"
	SubTimeout  time.Duration // Wait for the subscription acknowledgment
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Client:      DefaultClientConfig(),
		AuthTimeout: 10 * time.Second,
		SubTimeout:  10 * time.Second,
	}
}

// StreamURL joins a stream root and a feed.
func StreamURL(root string, feed model.Feed) string {
	if root == "" {
		root = DefaultStreamURL
	}
	return strings.TrimRight(root, "/") + "/" + string(feed)
}
