package gateway

import (
	"context"
	"time"

	"github.com/kyungseopkim/algorithm-trading/internal/model"
)

//go:generate mockgen -package=mocks -destination=mocks/gateway.go -source=gateway.go

// HistoricalQuery selects one page of bars for one symbol.
type HistoricalQuery struct {
	Symbol    string
	Timeframe model.Timeframe
	Feed      model.Feed
	Start     time.Time // Inclusive
	End       time.Time // Exclusive
	PageSize  int
	PageToken string // Empty for the first page
}

// Page is one provider response.
type Page struct {
	Bars          []model.RawBar
	NextPageToken string // Empty on the last page
}

// HistoricalGateway runs paged historical queries.
type HistoricalGateway interface {
	QueryHistorical(ctx context.Context, q HistoricalQuery) (Page, error)
}

// StreamGateway opens authenticated streaming connections.
type StreamGateway interface {
	// Connect dials and authenticates. The returned Conn is not yet subscribed.
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one physical streaming connection. It is not restartable: after a
// fault the caller closes it and connects again.
type Conn interface {
	// Subscribe requests bars for symbols and waits for the acknowledgment.
	Subscribe(ctx context.Context, symbols []string) error

	// Messages returns every decoded provider message in arrival order.
	Messages() <-chan Message

	// Errors returns transport faults. At most one is delivered.
	Errors() <-chan error

	// Close releases the connection.
	Close() error
}

// MessageKind classifies a provider message.
type MessageKind int

const (
	KindOther MessageKind = iota
	KindBar
	KindSuccess
	KindSubscription
	KindError
)

func (k MessageKind) String() string {
	switch k {
	case KindBar:
		return "bar"
	case KindSuccess:
		return "success"
	case KindSubscription:
		return "subscription"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

// Message is one decoded provider message.
type Message struct {
	Kind       MessageKind
	Bar        model.RawBar // Set for KindBar
	Code       int          // Set for KindError
	Text       string       // Control text ("connected", "authenticated", error message)
	ReceivedAt time.Time
}

// Err returns the provider error carried by a KindError message, or nil.
func (m Message) Err() error {
	if m.Kind != KindError {
		return nil
	}
	return &ProviderError{Code: m.Code, Message: m.Text}
}
