package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"ecinventory/internal/domain/model"
	"ecinventory/internal/infra/events"
	"ecinventory/internal/infra/redisdb"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(id string, productID int64) model.StockChanged {
	return model.StockChanged{EventID: id, ProductID: productID, Type: model.StockTransactionRemove}
}

// =====================
// Bus
// =====================

func TestBus_FanOutToSubscribers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := events.NewBus(4, logger)
	defer bus.Close()

	a, unsubA := bus.Subscribe()
	defer unsubA()
	b, unsubB := bus.Subscribe()
	defer unsubB()

	require.NoError(t, bus.Publish(context.Background(), ev("1", 7)))

	assert.Equal(t, "1", (<-a).EventID)
	assert.Equal(t, "1", (<-b).EventID)
}

// 詰まった購読者がいても送信側は止まらない
func TestBus_FullBufferDropsAndWarns(t *testing.T) {
	logger, hook := test.NewNullLogger()
	bus := events.NewBus(1, logger)
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		_ = bus.Publish(context.Background(), ev("1", 1))
		_ = bus.Publish(context.Background(), ev("2", 1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}

	assert.Equal(t, "1", (<-ch).EventID)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := events.NewBus(1, nil)
	ch, unsub := bus.Subscribe()
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, bus.Publish(context.Background(), ev("1", 1)))
}

func TestBus_CloseClosesAll(t *testing.T) {
	bus := events.NewBus(1, nil)
	ch, unsub := bus.Subscribe()
	bus.Close()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

// =====================
// Fanout
// =====================

type recPublisher struct {
	got []model.StockChanged
	err error
}

func (p *recPublisher) Publish(_ context.Context, e model.StockChanged) error {
	p.got = append(p.got, e)
	return p.err
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	bad := &recPublisher{err: errors.New("down")}
	good := &recPublisher{}

	err := events.Fanout{bad, nil, good}.Publish(context.Background(), ev("1", 1))
	assert.Error(t, err)
	assert.Len(t, bad.got, 1)
	assert.Len(t, good.got, 1)
}

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := events.NotifierFanout{events.NewLogNotifier(logger)}

	err := n.Notify(context.Background(), []model.StockAlert{
		{ProductID: 1, Name: "coffee", Stock: 0, Threshold: 10, Level: model.StockAlertOut},
	})
	require.NoError(t, err)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "stock alert", hook.LastEntry().Message)
	assert.Equal(t, model.StockAlertOut, hook.LastEntry().Data["level"])
}

// =====================
// Redis（REDIS_ADDR があるときだけ）
// =====================

func TestRedisPublisher_PublishesJSON(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	logg := logrus.New()
	logg.SetOutput(io.Discard)

	ctx := context.Background()
	rdb, err := redisdb.Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, 1, logg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, events.StockChangedChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, events.NewRedisPublisher(rdb).Publish(ctx, ev("redis-1", 3)))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var got model.StockChanged
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "redis-1", got.EventID)
	assert.Equal(t, int64(3), got.ProductID)
}
