//go:build integration

package containers

import (
	"context"
	"sync"
	"testing"

	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
)

const redpandaImage = "docker.redpanda.com/redpandadata/redpanda:v24.2.4"

// Redpanda is a running Kafka-compatible broker.
type Redpanda struct {
	Container *tcredpanda.Container
	Broker    string
}

var (
	sharedRedpanda    *Redpanda
	sharedRedpandaErr error
	redpandaOnce      sync.Once
)

// StartRedpanda returns the package-wide broker, starting it on first use.
func StartRedpanda(t *testing.T) *Redpanda {
	t.Helper()
	redpandaOnce.Do(func() {
		ctx := context.Background()
		container, err := tcredpanda.Run(ctx, redpandaImage, tcredpanda.WithAutoCreateTopics())
		if err != nil {
			sharedRedpandaErr = err
			return
		}
		broker, err := container.KafkaSeedBroker(ctx)
		if err != nil {
			_ = container.Terminate(ctx)
			sharedRedpandaErr = err
			return
		}
		sharedRedpanda = &Redpanda{Container: container, Broker: broker}
	})
	if sharedRedpandaErr != nil {
		t.Fatalf("start redpanda container: %v", sharedRedpandaErr)
	}
	return sharedRedpanda
}
