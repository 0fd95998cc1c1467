package writer

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
)

// PubSub is both ends of the queue transport.
type PubSub interface {
	message.Publisher
	message.Subscriber
}

// NewPubSub opens the queue transport named by connection. Only the
// in-process "gochannel" transport is available.
func NewPubSub(connection string, bufferSize int, logger *slog.Logger) (PubSub, error) {
	wmLogger := watermillLogger(logger)

	switch connection {
	case "gochannel", "":
		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(bufferSize),
		}, wmLogger), nil
	default:
		return nil, fmt.Errorf("unsupported queue connection %q", connection)
	}
}

// watermillLogger marks watermill's own logs internal so they are never
// captured back into the queue.
func watermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return watermill.NewSlogLogger(logger.With(logging.InternalAttr, true))
}
