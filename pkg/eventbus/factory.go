package eventbus

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/forgestate/pkg/channels/gochannel"
	"github.com/dukex/forgestate/pkg/channels/kafka"
)

const (
	KindGoChannel = "gochannel"
	KindKafka     = "kafka"
)

// New builds the bus named by kind. Kafka needs at least one broker.
func New(logger *slog.Logger, kind string, brokers []string, serviceName string) (*WatermillEventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch kind {
	case "", KindGoChannel:
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, err
		}

		return NewWatermillEventBus(pub, sub, logger), nil
	case KindKafka:
		pub, sub, err := kafka.CreateChannel(wmLogger, brokers, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka channel: %w", err)
		}

		return NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unknown event bus %q", kind)
	}
}
