package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/chronoflow/chronoflow/pkg/channels/gochannel"
	"github.com/chronoflow/chronoflow/pkg/channels/kafka"
	"github.com/chronoflow/chronoflow/pkg/eventbus"
)

// NewEventBus creates the event bus for a provider name: kafka for a broker
// backed deployment, gochannel for a single process. kafkaBrokers is a
// comma-separated broker list, only consulted for the kafka provider.
func NewEventBus(provider, kafkaBrokers string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), strings.Split(kafkaBrokers, ","), "chronoflow")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create GoChannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("unsupported event bus provider: " + provider)
	}
}
