package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/cutekitek/rankode-grader/internal/repository/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopProcessor struct{}

func (nopProcessor) Process(ctx context.Context, req *models.GradeRequest) *models.GradeResponse {
	return &models.GradeResponse{Id: req.Id}
}

func TestNewRabbitMQHandler(t *testing.T) {
	_, err := NewRabbitMQHandler(RabbitMqHandlerConfig{}, nopProcessor{})
	assert.Error(t, err)

	h, err := NewRabbitMQHandler(RabbitMqHandlerConfig{Login: "guest", Password: "pw", Host: "mq", Port: 5672, WorkersCount: 1}, nopProcessor{})
	require.NoError(t, err)
	assert.Equal(t, "amqp://guest:pw@mq:5672", h.cfg.url())
}

func TestListener(t *testing.T) {
	h, err := NewRabbitMQHandler(RabbitMqHandlerConfig{WorkersCount: 1, JobsPerSecond: 1000}, nopProcessor{})
	require.NoError(t, err)
	defer h.cancel()

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Body: []byte("not json")}
	deliveries <- amqp.Delivery{Body: []byte(`{"id":"1","task":"task-0","prefix":"sub/1"}`)}
	close(deliveries)
	go h.listener(deliveries)

	select {
	case req := <-h.jobsChan:
		assert.Equal(t, models.GradeRequest{Id: "1", Task: "task-0", Prefix: "sub/1"}, req)
	case <-time.After(5 * time.Second):
		t.Fatalf("request was not dispatched")
	}
}

func TestListener_StopsOnCancel(t *testing.T) {
	h, err := NewRabbitMQHandler(RabbitMqHandlerConfig{WorkersCount: 1}, nopProcessor{})
	require.NoError(t, err)

	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Body: []byte(`{"id":"1"}`)}
	done := make(chan struct{})
	go func() {
		h.listener(deliveries)
		close(done)
	}()
	h.cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("listener did not stop")
	}
}

func TestClose_ConcurrentReconnect(t *testing.T) {
	h, err := NewRabbitMQHandler(RabbitMqHandlerConfig{WorkersCount: 1}, nopProcessor{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.setConsumer(nil)
		}
	}()
	h.Close()
	<-done

	assert.True(t, h.isClosed())
	assert.ErrorIs(t, h.ctx.Err(), context.Canceled)
}
