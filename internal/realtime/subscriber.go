package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/smartys-dev/chatdesk/internal/chat"
	"github.com/smartys-dev/chatdesk/internal/store/redisstore"
)

// Subscriber drives the one long-lived feed subscription. It lives as long
// as the process: conversation selection never opens or closes it, the
// aggregator decides per delivery whether the message concerns the current
// selection.
type Subscriber struct {
	store *redisstore.Store
	svc   *chat.Service
	hub   *Hub
}

func NewSubscriber(store *redisstore.Store, svc *chat.Service, hub *Hub) *Subscriber {
	return &Subscriber{store: store, svc: svc, hub: hub}
}

// Run blocks until ctx is canceled, reconnecting with a flat backoff when
// the subscription drops.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil {
			log.Printf("feed subscription lost: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	sub := s.store.SubscribeInserted(ctx)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, []byte(msg.Payload))
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload []byte) {
	var m chat.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		log.Printf("feed: bad payload: %v", err)
		return
	}
	s.svc.HandleInserted(ctx, m)
	if s.hub != nil {
		s.hub.Broadcast(payload)
	}
}
