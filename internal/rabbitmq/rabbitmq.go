package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"
)

const (
	reqQueue  = "grade-req"
	respQueue = "grade-resp"

	reconnectDelay = 15 * time.Second
)

type RabbitMqHandlerConfig struct {
	Login        string
	Password     string
	Host         string
	Port         int
	WorkersCount int
	// 0 disables the intake throttle
	JobsPerSecond float64
}

func (c RabbitMqHandlerConfig) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d", c.Login, c.Password, c.Host, c.Port)
}

// Processor grades a single request.
type Processor interface {
	Process(ctx context.Context, req *models.GradeRequest) *models.GradeResponse
}

type RabbitMQHandler struct {
	cfg          RabbitMqHandlerConfig
	processor    Processor
	limiter      *rate.Limiter
	conn         *amqp.Connection
	consumerChan *amqp.Channel
	producerChan *amqp.Channel
	jobsChan     chan models.GradeRequest
	wg           *sync.WaitGroup
	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	closed       bool
}

func NewRabbitMQHandler(cfg RabbitMqHandlerConfig, processor Processor) (*RabbitMQHandler, error) {
	if cfg.WorkersCount <= 0 {
		return nil, errors.New("workers count must be positive")
	}
	limit := rate.Inf
	if cfg.JobsPerSecond > 0 {
		limit = rate.Limit(cfg.JobsPerSecond)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RabbitMQHandler{
		cfg:       cfg,
		processor: processor,
		limiter:   rate.NewLimiter(limit, 1),
		jobsChan:  make(chan models.GradeRequest),
		wg:        &sync.WaitGroup{},
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (r *RabbitMQHandler) Start() error {
	if err := r.connect(); err != nil {
		return err
	}
	for i := 0; i < r.cfg.WorkersCount; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return nil
}

func (r *RabbitMQHandler) connect() error {
	conn, err := amqp.Dial(r.cfg.url())
	if err != nil {
		return errors.Wrap(err, "failed to connect to rabbitmq")
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	if err := r.startProducer(); err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to start producer")
	}
	if err := r.startConsumer(); err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to start consumer")
	}

	errChan := conn.NotifyClose(make(chan *amqp.Error, 1))
	go r.watch(errChan)
	return nil
}

// watch reconnects after the broker dropped the connection.
func (r *RabbitMQHandler) watch(errChan <-chan *amqp.Error) {
	err, ok := <-errChan
	if !ok || r.isClosed() {
		return
	}
	slog.Error("rabbitmq connection lost", "error", err)
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
		if err := r.connect(); err != nil {
			slog.Warn("failed to reconnect", "error", err)
			continue
		}
		slog.Info("rabbitmq connection restored")
		return
	}
}

func (r *RabbitMQHandler) startConsumer() error {
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	queue, err := channel.QueueDeclare(reqQueue, false, false, false, false, nil)
	if err != nil {
		return err
	}
	del, err := channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return err
	}

	r.setConsumer(channel)
	go r.listener(del)
	return nil
}

func (r *RabbitMQHandler) setConsumer(channel *amqp.Channel) {
	r.mu.Lock()
	r.consumerChan = channel
	r.mu.Unlock()
}

func (r *RabbitMQHandler) startProducer() error {
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	if _, err := channel.QueueDeclare(respQueue, false, false, false, false, nil); err != nil {
		return err
	}
	r.mu.Lock()
	r.producerChan = channel
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQHandler) listener(deliveries <-chan amqp.Delivery) {
	for data := range deliveries {
		var req models.GradeRequest
		if err := json.Unmarshal(data.Body, &req); err != nil {
			slog.Error("invalid grade request", "message", string(data.Body))
			continue
		}
		if err := r.limiter.Wait(r.ctx); err != nil {
			return
		}
		select {
		case r.jobsChan <- req:
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *RabbitMQHandler) worker() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case req := <-r.jobsChan:
			slog.Info("grading submission", "id", req.Id, "task", req.Task)
			r.send(r.processor.Process(r.ctx, &req))
		}
	}
}

func (r *RabbitMQHandler) send(data *models.GradeResponse) {
	if r.isClosed() {
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	r.mu.Lock()
	producer := r.producerChan
	r.mu.Unlock()
	err = producer.PublishWithContext(r.ctx, "", respQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		slog.Error("failed to send response to queue", "error", err)
	}
}

func (r *RabbitMQHandler) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close stops intake, cancels running jobs and closes the connection.
func (r *RabbitMQHandler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	conn := r.conn
	consumer := r.consumerChan
	r.mu.Unlock()

	if consumer != nil {
		consumer.Close()
	}
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Enqueue publishes a single grade request.
func Enqueue(ctx context.Context, cfg RabbitMqHandlerConfig, req *models.GradeRequest) error {
	conn, err := amqp.Dial(cfg.url())
	if err != nil {
		return errors.Wrap(err, "failed to connect to rabbitmq")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open a channel")
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(reqQueue, false, false, false, false, nil); err != nil {
		return errors.Wrap(err, "failed to declare request queue")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", reqQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
