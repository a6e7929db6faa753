package eventchannel

import (
	"context"

	"github.com/gabapcia/walletsync/internal/wallet"
)

// State of the push channel.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MessageType is the kind of an inbound push message.
type MessageType string

const (
	MessageAddedToMempool     MessageType = "AddedToMempool"
	MessageRemovedFromMempool MessageType = "RemovedFromMempool"
	MessageConfirmed          MessageType = "Confirmed"
	MessageBlockConnected     MessageType = "BlockConnected"

	// MessageDropped is produced by the transport when the connection broke
	// and a redial is about to start.
	MessageDropped MessageType = "Dropped"

	// MessageReconnected is produced by the transport after it re-established
	// the connection and restored its subscriptions.
	MessageReconnected MessageType = "Reconnected"
)

// Message is an inbound push message.
type Message struct {
	Type MessageType
	TxID string
}

// Conn is an open push channel. The transport restores the subscription set
// on its own after a reconnect, framing the outage with MessageDropped and
// MessageReconnected. Messages is closed when the channel is gone for good.
type Conn interface {
	Subscribe(ctx context.Context, fingerprint string) error
	Unsubscribe(ctx context.Context, fingerprint string) error
	Subscriptions() []string
	Messages() <-chan Message
	Close() error
}

// Transport opens push channels. Open returns once the channel is confirmed open.
type Transport interface {
	Open(ctx context.Context) (Conn, error)
}

// TxLookup fetches a single transaction by id.
type TxLookup interface {
	Tx(ctx context.Context, txid string) (wallet.Tx, error)
}
