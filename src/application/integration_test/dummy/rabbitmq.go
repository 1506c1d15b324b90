package dummy

import (
	"sync"

	"stem-unmixer/src/application/publish"
	"stem-unmixer/src/application/worker"

	"github.com/streadway/amqp"
)

var _ publish.Publisher = &RabbitMQ{}
var _ worker.MessageChannel = &RabbitMQ{}
var _ amqp.Acknowledger = &RabbitMQ{}

type RabbitMQ struct {
	Unavailable    bool
	MessageChannel chan amqp.Delivery

	mutex sync.Mutex
	acks  []uint64
	nacks []uint64
	tag   uint64
}

func NewRabbitMQ() *RabbitMQ {
	return &RabbitMQ{
		Unavailable:    false,
		MessageChannel: make(chan amqp.Delivery, 100),
	}
}

func (r *RabbitMQ) Publish(msg amqp.Publishing) error {
	if r.Unavailable {
		return NetworkFailure
	}

	r.mutex.Lock()
	r.tag++
	tag := r.tag
	r.mutex.Unlock()

	r.MessageChannel <- amqp.Delivery{
		Acknowledger:    r,
		ContentType:     msg.ContentType,
		ContentEncoding: msg.ContentEncoding,
		DeliveryMode:    msg.DeliveryMode,
		CorrelationId:   msg.CorrelationId,
		MessageId:       msg.MessageId,
		Timestamp:       msg.Timestamp,
		Type:            msg.Type,
		Body:            msg.Body,
		DeliveryTag:     tag,
	}
	return nil
}

// Drain empties the channel without blocking.
func (r *RabbitMQ) Drain() []amqp.Delivery {
	deliveries := []amqp.Delivery{}
	for {
		select {
		case delivery := <-r.MessageChannel:
			deliveries = append(deliveries, delivery)
		default:
			return deliveries
		}
	}
}

func (r *RabbitMQ) Consume(_ string, _ string, _ bool, _ bool, _ bool, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	if r.Unavailable {
		return nil, NetworkFailure
	}

	return r.MessageChannel, nil
}

func (r *RabbitMQ) Close() error {
	return nil
}

func (r *RabbitMQ) Ack(tag uint64, _ bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.acks = append(r.acks, tag)
	return nil
}

func (r *RabbitMQ) Nack(tag uint64, _ bool, _ bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.nacks = append(r.nacks, tag)
	return nil
}

func (r *RabbitMQ) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func (r *RabbitMQ) AckCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.acks)
}

func (r *RabbitMQ) NackCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.nacks)
}
