package webhook

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type DeliveryKind string

const (
	DeliveryMessage  DeliveryKind = "message"
	DeliveryFile     DeliveryKind = "file"
	DeliveryTemplate DeliveryKind = "template"
)

// Delivery is one outbound webhook call waiting in the queue.
type Delivery struct {
	Kind DeliveryKind `json:"kind"`

	MobileNumber string `json:"mobile_number,omitempty"`
	Message      string `json:"message,omitempty"`

	FileURL  string `json:"file_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	FileType string `json:"file_type,omitempty"`

	CustomerName string `json:"customer_name,omitempty"`
	TemplateName string `json:"template_name,omitempty"`
}

// MaxAttempts bounds the main↔retry round trips before a delivery is
// parked in the DLQ.
const MaxAttempts = 5

type Queue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewQueue(url, queue string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	// match worker
	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
			"x-message-ttl":             int32(30000),
		},
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// Main queue: dead-letter to retry queue on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": retryQ,
		},
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Queue{conn: conn, ch: ch, queue: queue}, nil
}

// Attempts reads how many times a delivery has been rejected off the main
// queue, from the x-death header the broker stamps on each dead-letter hop.
// A fresh delivery has zero.
func (q *Queue) Attempts(headers amqp.Table) int64 {
	return DeathCount(headers, q.queue)
}

// DeathCount extracts the dead-letter count for one queue from x-death.
func DeathCount(headers amqp.Table, queue string) int64 {
	deaths, ok := headers["x-death"].([]any)
	if !ok {
		return 0
	}
	for _, e := range deaths {
		t, ok := e.(amqp.Table)
		if !ok {
			continue
		}
		if name, _ := t["queue"].(string); name != queue {
			continue
		}
		switch c := t["count"].(type) {
		case int64:
			return c
		case int32:
			return int64(c)
		case int:
			return int64(c)
		}
	}
	return 0
}

// PublishDLQ parks a delivery in the dead-letter queue, out of the
// main↔retry cycle.
func (q *Queue) PublishDLQ(ctx context.Context, body []byte) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return q.ch.PublishWithContext(cctx,
		"",
		q.queue+".dlq",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// Consume opens the delivery stream for the worker. Prefetch bounds how
// many unacked deliveries a single worker holds.
func (q *Queue) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return q.ch.Consume(
		q.queue,
		"",    // consumer tag
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
}

func (q *Queue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

func (q *Queue) Enqueue(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return q.ch.PublishWithContext(cctx,
		"",      // default exchange
		q.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func (q *Queue) NotifyMessage(ctx context.Context, mobileNumber, text string) error {
	return q.Enqueue(ctx, Delivery{
		Kind:         DeliveryMessage,
		MobileNumber: mobileNumber,
		Message:      text,
	})
}

func (q *Queue) NotifyFile(ctx context.Context, mobileNumber, fileURL, caption, fileType string) error {
	return q.Enqueue(ctx, Delivery{
		Kind:         DeliveryFile,
		MobileNumber: mobileNumber,
		FileURL:      fileURL,
		Caption:      caption,
		FileType:     fileType,
	})
}

func (q *Queue) NotifyTemplate(ctx context.Context, customerName, phoneNumber, templateName string) error {
	return q.Enqueue(ctx, Delivery{
		Kind:         DeliveryTemplate,
		MobileNumber: phoneNumber,
		CustomerName: customerName,
		TemplateName: templateName,
	})
}
