package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/smartys-dev/chatdesk/internal/config"
	"github.com/smartys-dev/chatdesk/internal/webhook"
)

func main() {
	cfg := config.Load()

	concurrency := 4
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			concurrency = n
		}
	}

	queue, err := webhook.NewQueue(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbitmq connect: %v", err)
	}
	defer queue.Close()

	deliveries, err := queue.Consume(concurrency)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	client := webhook.NewClient(cfg.MessageWebhookURL, cfg.TemplateWebhookURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					handle(ctx, client, queue, d)
				}
			}
		}()
	}

	wg.Wait()
	log.Printf("worker stopped")
}

// handle dispatches one queued delivery to the channel webhook. A failure
// is rejected without requeue, which routes it through the retry queue and
// back; once the x-death count hits the cap the delivery is parked in the
// DLQ so a permanently failing endpoint cannot cycle forever. Deliveries
// that can never succeed (malformed, unknown kind) go to the DLQ at once.
func handle(ctx context.Context, client *webhook.Client, queue *webhook.Queue, d amqp.Delivery) {
	var dv webhook.Delivery
	if err := json.Unmarshal(d.Body, &dv); err != nil {
		log.Printf("dead-letter malformed delivery: %v", err)
		deadLetter(ctx, queue, d)
		return
	}

	var err error
	switch dv.Kind {
	case webhook.DeliveryMessage:
		err = client.SendMessage(ctx, dv.MobileNumber, dv.Message)
	case webhook.DeliveryFile:
		err = client.SendFile(ctx, dv.MobileNumber, dv.FileURL, dv.Caption, dv.FileType)
	case webhook.DeliveryTemplate:
		err = client.SendTemplate(ctx, dv.CustomerName, dv.MobileNumber, dv.TemplateName)
	default:
		log.Printf("dead-letter delivery with unknown kind %q", dv.Kind)
		deadLetter(ctx, queue, d)
		return
	}

	if err != nil {
		attempts := queue.Attempts(d.Headers)
		if attempts >= webhook.MaxAttempts {
			log.Printf("delivery exhausted kind=%s to=%s attempts=%d err=%v", dv.Kind, dv.MobileNumber, attempts, err)
			deadLetter(ctx, queue, d)
			return
		}
		log.Printf("delivery failed kind=%s to=%s attempt=%d err=%v", dv.Kind, dv.MobileNumber, attempts+1, err)
		_ = d.Reject(false)
		return
	}
	_ = d.Ack(false)
}

// deadLetter moves the delivery into the DLQ and acks it off the main
// queue. If even the DLQ publish fails the delivery is rejected back into
// the retry cycle rather than lost.
func deadLetter(ctx context.Context, queue *webhook.Queue, d amqp.Delivery) {
	if err := queue.PublishDLQ(ctx, d.Body); err != nil {
		log.Printf("dlq publish failed: %v", err)
		_ = d.Reject(false)
		return
	}
	_ = d.Ack(false)
}
