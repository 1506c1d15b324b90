package worker

import (
	"context"

	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

type MessageChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type Router interface {
	HandleMessage(message amqp.Delivery) error
}

type QueueWorker struct {
	channel   MessageChannel
	router    Router
	queueName string
}

func NewQueueWorker(channel MessageChannel, queueName string, router Router) QueueWorker {
	return QueueWorker{
		channel:   channel,
		queueName: queueName,
		router:    router,
	}
}

func NewQueueWorkerFromConnection(conn *amqp.Connection, queueName string, prefetch int, router Router) (QueueWorker, error) {
	rabbitChannel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return QueueWorker{}, cerr.Wrap(err).Error("Failed to get channel")
	}

	queue, err := rabbitChannel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		_ = rabbitChannel.Close()
		return QueueWorker{}, cerr.Wrap(err).Error("Failed to declare queue")
	}

	if prefetch > 0 {
		if err := rabbitChannel.Qos(prefetch, 0, false); err != nil {
			_ = rabbitChannel.Close()
			return QueueWorker{}, cerr.Field("prefetch", prefetch).Wrap(err).Error("Failed to set channel prefetch")
		}
	}

	return NewQueueWorker(rabbitChannel, queue.Name, router), nil
}

// Start consumes messages until the stream closes or ctx is done. Every
// message is acked when its job succeeds and nacked without requeueing when
// it fails.
func (q *QueueWorker) Start(ctx context.Context) error {
	log.WithField("queue_name", q.queueName).Info("Starting worker")

	defer q.channel.Close()

	messageStream, err := q.channel.Consume(
		q.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		return cerr.Field("queue_name", q.queueName).
			Wrap(err).Error("Failed to start consuming from channel")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping worker")
			return nil
		case message, ok := <-messageStream:
			if !ok {
				return nil
			}
			q.handle(message)
		}
	}
}

func (q *QueueWorker) handle(message amqp.Delivery) {
	logger := log.WithField("message_type", message.Type)
	logger.Info("Handling message")

	err := q.router.HandleMessage(message)
	if err != nil {
		err = cerr.Field("message_type", message.Type).
			Wrap(err).Error("Failed to process message")

		cerr.Log(err)

		if err = message.Nack(false, false); err != nil {
			logger.Error("Failed to nack message")
		}
		return
	}

	logger.Info("Successfully processed message")
	if err = message.Ack(false); err != nil {
		logger.Error("Failed to ack message")
	}
}
