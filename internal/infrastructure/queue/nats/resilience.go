package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

// connectionErrors are the client states a reconnect can clear.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
}

func classifyPublishError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) bool {
		for _, target := range connectionErrors {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

func markTemporary(err error) error {
	return resilience.MarkTemporary("nats publish", err, classifyPublishError)
}
