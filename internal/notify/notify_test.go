package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/pairs-analytics/internal/kafka"
	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleAlert(id int) model.TriggeredAlert {
	return model.TriggeredAlert{
		Rule:        model.AlertRule{ID: id, SymbolX: "btcusdt", SymbolY: "ethusdt", Metric: "zscore", Op: ">", Threshold: 2},
		Message:     "Rule 1: btcusdt/ethusdt zscore > 2.0 -> value=2.5000",
		Value:       2.5,
		TriggeredAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg kafka.Message) error {
	args := m.Called(ctx, topic, msg)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alerts []model.TriggeredAlert) error {
	args := m.Called(ctx, alerts)
	return args.Error(0)
}

func TestRedisNotifierPublishes(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "pair-alerts")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(client, "pair-alerts", zap.NewNop())
	require.NoError(t, n.Notify(ctx, []model.TriggeredAlert{sampleAlert(1), sampleAlert(2)}))

	for _, want := range []int{1, 2} {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)

		var got model.TriggeredAlert
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, want, got.Rule.ID)
		assert.Equal(t, 2.5, got.Value)
	}
}

func TestRedisNotifierUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	defer client.Close()
	srv.Close()

	n := NewRedisNotifier(client, "pair-alerts", zap.NewNop())
	assert.Error(t, n.Notify(context.Background(), []model.TriggeredAlert{sampleAlert(1)}))
}

func TestKafkaNotifierKeysByPair(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "pair-alerts", mock.MatchedBy(func(msg kafka.Message) bool {
		return msg.Key == "btcusdt/ethusdt"
	})).Return(nil).Twice()

	n := NewKafkaNotifier(pub, "pair-alerts")
	require.NoError(t, n.Notify(context.Background(), []model.TriggeredAlert{sampleAlert(1), sampleAlert(2)}))
	pub.AssertExpectations(t)
}

func TestKafkaNotifierStopsOnError(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "pair-alerts", mock.Anything).Return(errors.New("broker down")).Once()

	n := NewKafkaNotifier(pub, "pair-alerts")
	err := n.Notify(context.Background(), []model.TriggeredAlert{sampleAlert(7), sampleAlert(8)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert 7")
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestMultiDeliversToAll(t *testing.T) {
	alerts := []model.TriggeredAlert{sampleAlert(1)}

	failing := new(MockNotifier)
	failing.On("Notify", mock.Anything, alerts).Return(errors.New("down"))
	ok := new(MockNotifier)
	ok.On("Notify", mock.Anything, alerts).Return(nil)

	m := NewMulti(zap.NewNop(), failing, nil, ok)
	err := m.Notify(context.Background(), alerts)

	assert.EqualError(t, err, "down")
	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
}

func TestMultiSkipsEmpty(t *testing.T) {
	n := new(MockNotifier)
	m := NewMulti(zap.NewNop(), n)

	require.NoError(t, m.Notify(context.Background(), nil))
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}
