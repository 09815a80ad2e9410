//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"concord/internal/eventlog"
	id "concord/pkg/domain"
	"concord/pkg/platform/audit"
	"concord/pkg/testutil/containers"
)

func TestKafkaSink_ProducesKeyedRecords(t *testing.T) {
	rp := containers.StartRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const topic = "concord.contract-events.test"
	sink, err := NewKafkaSink(ctx, []string{rp.Broker}, topic)
	require.NoError(t, err)
	defer sink.Close()

	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Send(ctx, []eventlog.Event{
		{Seq: 1, Timestamp: at, Domain: id.Energy, Type: audit.EventStaked, Message: "stake recorded"},
		{Seq: 2, Timestamp: at, Domain: id.Energy, Type: audit.EventUnstaked, Message: "stake withdrawn"},
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) < 2 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err(), "timed out waiting for records")
		fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	}

	for _, r := range got {
		assert.Equal(t, "energy", string(r.Key))
	}
	var first eventlog.Event
	require.NoError(t, json.Unmarshal(got[0].Value, &first))
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, audit.EventStaked, first.Type)
}
