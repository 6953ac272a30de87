package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound          = errors.New("conversation not found")
	ErrNotSelected       = errors.New("conversation not selected")
	ErrNoActiveSession   = errors.New("no active session for this customer")
	ErrDeliveryNotQueued = errors.New("message stored but channel delivery not queued")
)

// Store is the slice of the repository the aggregator needs.
type Store interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, userID string) (*Customer, error)
	UpsertCustomer(ctx context.Context, c *Customer) error
	UpdateAgentEnabled(ctx context.Context, userID string, enabled bool) error
	SessionIDs(ctx context.Context, userID string) ([]string, error)
	EnsureSession(ctx context.Context, sessionID, userID string) error
	CustomerBySessionID(ctx context.Context, sessionID string) (*Customer, error)
	InsertMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, sessionIDs []string) ([]Message, error)
	ListPageBefore(ctx context.Context, sessionIDs []string, beforeID uint64, limit int) ([]Message, error)
}

// FeedPublisher fans inserted messages out to the realtime feed.
type FeedPublisher interface {
	PublishInserted(ctx context.Context, payload []byte) error
}

// Notifier hands outbound channel notifications to the delivery queue.
type Notifier interface {
	NotifyMessage(ctx context.Context, mobileNumber, text string) error
	NotifyFile(ctx context.Context, mobileNumber, fileURL, caption, fileType string) error
	NotifyTemplate(ctx context.Context, customerName, phoneNumber, templateName string) error
}

// Service is the conversation aggregator. It owns the summary list and the
// live message window of the selected conversation; all mutation goes
// through its methods.
type Service struct {
	store    Store
	feed     FeedPublisher
	notifier Notifier
	pageSize int

	group singleflight.Group

	mu        sync.Mutex
	summaries map[string]*Summary
	order     []string
	selected  string
	messages  []Message
}

func NewService(store Store, feed FeedPublisher, notifier Notifier, pageSize int) *Service {
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return &Service{
		store:     store,
		feed:      feed,
		notifier:  notifier,
		pageSize:  pageSize,
		summaries: make(map[string]*Summary),
	}
}

// LoadConversations rebuilds the summary list from scratch: one row per
// customer with at least one session and one message. A failure for one
// customer is logged and never aborts the others.
func (s *Service) LoadConversations(ctx context.Context) error {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}

	summaries := make(map[string]*Summary, len(customers))
	order := make([]string, 0, len(customers))

	for _, c := range customers {
		sum, err := s.buildSummary(ctx, c)
		if err != nil {
			log.Printf("conversation skipped user_id=%s err=%v", c.UserID, err)
			continue
		}
		if sum == nil {
			continue
		}
		summaries[c.UserID] = sum
		order = append(order, c.UserID)
	}

	s.mu.Lock()
	s.summaries = summaries
	s.order = order
	s.mu.Unlock()
	return nil
}

func (s *Service) buildSummary(ctx context.Context, c Customer) (*Summary, error) {
	sids, err := s.store.SessionIDs(ctx, c.UserID)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	if len(sids) == 0 {
		return nil, nil
	}

	msgs, err := s.store.ListMessages(ctx, sids)
	if err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	last := msgs[len(msgs)-1]
	return &Summary{
		UserID:          c.UserID,
		LastMessage:     last.Payload.Preview(),
		LastMessageTime: last.Payload.Timestamp,
		MessageCount:    len(msgs),
		SessionIDs:      sids,
		Customer:        c,
	}, nil
}

// Conversations returns the summary rows in load order.
func (s *Service) Conversations() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		if sum, ok := s.summaries[id]; ok {
			out = append(out, *sum)
		}
	}
	return out
}

func (s *Service) summaryCopy(customerID string) (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[customerID]
	if !ok {
		return Summary{}, false
	}
	cp := *sum
	cp.SessionIDs = append([]string(nil), sum.SessionIDs...)
	return cp, true
}

// Select makes customerID the active conversation and reloads its full
// message history in ASC id order. A response that arrives after the
// selection moved on is discarded instead of applied.
func (s *Service) Select(ctx context.Context, customerID string) (Summary, []Message, error) {
	s.mu.Lock()
	sum, ok := s.summaries[customerID]
	if !ok {
		s.mu.Unlock()
		return Summary{}, nil, ErrNotFound
	}
	s.selected = customerID
	cp := *sum
	cp.SessionIDs = append([]string(nil), sum.SessionIDs...)
	s.mu.Unlock()

	msgs, err := s.store.ListMessages(ctx, cp.SessionIDs)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("load messages: %w", err)
	}

	s.mu.Lock()
	if s.selected == customerID {
		s.messages = msgs
	}
	s.mu.Unlock()
	return cp, msgs, nil
}

// Selected returns the active conversation's customer id, or "".
func (s *Service) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Messages returns a copy of the live message window.
func (s *Service) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// LoadPrevious fetches the next older page for the active conversation,
// using the smallest loaded id as an exclusive cursor, and prepends it to
// the live window. Concurrent calls for the same customer collapse into a
// single fetch; an empty page means no older history exists.
func (s *Service) LoadPrevious(ctx context.Context, customerID string) ([]Message, error) {
	s.mu.Lock()
	if s.selected != customerID || len(s.messages) == 0 {
		s.mu.Unlock()
		return nil, ErrNotSelected
	}
	sum, ok := s.summaries[customerID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	cursor := s.messages[0].ID
	sids := append([]string(nil), sum.SessionIDs...)
	s.mu.Unlock()

	v, err, _ := s.group.Do(customerID, func() (any, error) {
		page, err := s.store.ListPageBefore(ctx, sids, cursor, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("load page: %w", err)
		}
		if len(page) == 0 {
			return []Message(nil), nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.selected != customerID {
			// selection changed mid-fetch, drop the page
			return []Message(nil), nil
		}
		s.messages = mergeAscending(page, s.messages)
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Message), nil
}

// mergeAscending prepends the older page, dropping anything already loaded,
// and keeps the result strictly ascending by id.
func mergeAscending(older, newer []Message) []Message {
	seen := make(map[uint64]bool, len(newer))
	for _, m := range newer {
		seen[m.ID] = true
	}
	out := make([]Message, 0, len(older)+len(newer))
	for _, m := range older {
		if !seen[m.ID] {
			out = append(out, m)
			seen[m.ID] = true
		}
	}
	return append(out, newer...)
}

// HandleInserted is the realtime feed callback. It refreshes the owning
// customer's summary and, when the message targets the conversation that is
// selected *now*, merges it into the live window. Duplicate deliveries are
// no-ops.
func (s *Service) HandleInserted(ctx context.Context, m Message) {
	cust, err := s.store.CustomerBySessionID(ctx, m.SessionID)
	if err != nil {
		log.Printf("feed: unmapped session_id=%s msg_id=%d err=%v", m.SessionID, m.ID, err)
	} else {
		sum, err := s.buildSummary(ctx, *cust)
		if err != nil {
			log.Printf("feed: summary refresh failed user_id=%s err=%v", cust.UserID, err)
		} else if sum != nil {
			s.mu.Lock()
			if _, ok := s.summaries[cust.UserID]; !ok {
				s.order = append(s.order, cust.UserID)
			}
			s.summaries[cust.UserID] = sum
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return
	}
	sel, ok := s.summaries[s.selected]
	if !ok {
		return
	}
	match := false
	for _, sid := range sel.SessionIDs {
		if sid == m.SessionID {
			match = true
			break
		}
	}
	if !match {
		return
	}
	for _, loaded := range s.messages {
		if loaded.ID == m.ID {
			return
		}
	}
	// the feed delivers in commit order; insertion sort is only a guard
	// against reordered redelivery
	i := len(s.messages)
	for i > 0 && s.messages[i-1].ID > m.ID {
		i--
	}
	s.messages = append(s.messages, Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = m
}

func (s *Service) publishInserted(ctx context.Context, m *Message) {
	if s.feed == nil {
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		log.Printf("feed: marshal msg_id=%d err=%v", m.ID, err)
		return
	}
	if err := s.feed.PublishInserted(ctx, b); err != nil {
		log.Printf("feed: publish msg_id=%d err=%v", m.ID, err)
	}
}

// SendReply persists a support reply and queues the channel webhook. When
// the message is stored but the webhook cannot be queued the reply is a
// partial success: the caller gets ErrDeliveryNotQueued, never a silent drop.
func (s *Service) SendReply(ctx context.Context, customerID, text string) (*Message, error) {
	sum, ok := s.summaryCopy(customerID)
	if !ok {
		return nil, ErrNotFound
	}
	if len(sum.SessionIDs) == 0 {
		return nil, ErrNoActiveSession
	}

	msg := &Message{
		SessionID: sum.SessionIDs[len(sum.SessionIDs)-1],
		Payload: Payload{
			Kind:      KindSupportText,
			Content:   text,
			Timestamp: time.Now().UTC(),
			Sender:    SenderSupport,
		},
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}
	s.publishInserted(ctx, msg)

	if err := s.notifier.NotifyMessage(ctx, sum.Customer.PhoneNumber, text); err != nil {
		log.Printf("reply stored but not queued user_id=%s msg_id=%d err=%v", customerID, msg.ID, err)
		return msg, fmt.Errorf("%w: %v", ErrDeliveryNotQueued, err)
	}
	return msg, nil
}

// SendFile is SendReply for an uploaded attachment; the payload kind is
// derived from the MIME prefix.
func (s *Service) SendFile(ctx context.Context, customerID, fileURL, fileName, fileType string, fileSize int64) (*Message, error) {
	sum, ok := s.summaryCopy(customerID)
	if !ok {
		return nil, ErrNotFound
	}
	if len(sum.SessionIDs) == 0 {
		return nil, ErrNoActiveSession
	}

	kind := KindFile
	if strings.HasPrefix(fileType, "image/") {
		kind = KindImage
	}
	msg := &Message{
		SessionID: sum.SessionIDs[len(sum.SessionIDs)-1],
		Payload: Payload{
			Kind:      kind,
			URL:       fileURL,
			FileName:  fileName,
			FileType:  fileType,
			FileSize:  fileSize,
			Timestamp: time.Now().UTC(),
			Sender:    SenderSupport,
		},
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store file message: %w", err)
	}
	s.publishInserted(ctx, msg)

	if err := s.notifier.NotifyFile(ctx, sum.Customer.PhoneNumber, fileURL, fileName, fileType); err != nil {
		log.Printf("file stored but not queued user_id=%s msg_id=%d err=%v", customerID, msg.ID, err)
		return msg, fmt.Errorf("%w: %v", ErrDeliveryNotQueued, err)
	}
	return msg, nil
}

// SendTemplate queues a template send for the customer's phone number.
func (s *Service) SendTemplate(ctx context.Context, customerID, templateName string) error {
	sum, ok := s.summaryCopy(customerID)
	if !ok {
		return ErrNotFound
	}
	if sum.Customer.PhoneNumber == "" {
		return ErrNoActiveSession
	}
	return s.notifier.NotifyTemplate(ctx, sum.Customer.DisplayName, sum.Customer.PhoneNumber, templateName)
}

// AgentEnabled reads the auto-responder flag from the store. The workflow
// asks before generating a reply, possibly before any summary exists for
// the customer, so the cached summary list is not consulted.
func (s *Service) AgentEnabled(ctx context.Context, customerID string) (bool, error) {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return false, err
	}
	return c.AgentEnabled, nil
}

// SetAgentEnabled flips the per-customer auto-responder flag.
func (s *Service) SetAgentEnabled(ctx context.Context, customerID string, enabled bool) error {
	if err := s.store.UpdateAgentEnabled(ctx, customerID, enabled); err != nil {
		return err
	}
	s.mu.Lock()
	if sum, ok := s.summaries[customerID]; ok {
		sum.Customer.AgentEnabled = enabled
	}
	s.mu.Unlock()
	return nil
}

// InboundMessage is what the workflow hook delivers for a customer message.
type InboundMessage struct {
	UserID      string
	DisplayName string
	PhoneNumber string
	SessionID   string
	Kind        string
	Content     string
	URL         string
	Timestamp   time.Time
}

// RecordInbound upserts the customer and session mapping, appends the
// message and publishes it to the feed. Summary refresh rides on the feed
// delivery, same as any other insert.
func (s *Service) RecordInbound(ctx context.Context, in InboundMessage) (*Message, error) {
	if in.UserID == "" || in.SessionID == "" {
		return nil, fmt.Errorf("inbound: user_id and session_id required")
	}
	if err := s.store.UpsertCustomer(ctx, &Customer{
		UserID:       in.UserID,
		DisplayName:  in.DisplayName,
		PhoneNumber:  in.PhoneNumber,
		AgentEnabled: true,
	}); err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	if err := s.store.EnsureSession(ctx, in.SessionID, in.UserID); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	kind := in.Kind
	if !knownKind(kind) {
		kind = KindCustomerText
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	msg := &Message{
		SessionID: in.SessionID,
		Payload: Payload{
			Kind:      kind,
			Content:   in.Content,
			URL:       in.URL,
			Timestamp: ts,
			Sender:    SenderCustomer,
		},
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store inbound: %w", err)
	}
	s.publishInserted(ctx, msg)
	return msg, nil
}

// ExportTranscript renders the full conversation as plain text.
func (s *Service) ExportTranscript(ctx context.Context, customerID string) (string, error) {
	sum, ok := s.summaryCopy(customerID)
	if !ok {
		return "", ErrNotFound
	}
	msgs, err := s.store.ListMessages(ctx, sum.SessionIDs)
	if err != nil {
		return "", fmt.Errorf("load messages: %w", err)
	}

	var b strings.Builder
	for _, m := range msgs {
		ts := m.Payload.Timestamp.Format("Jan 2 15:04")
		content := m.Payload.Content
		switch m.Payload.Kind {
		case KindImage:
			content = "[Image: " + m.Payload.URL + "]"
		case KindFile:
			content = "[File: " + m.Payload.FileName + "]"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", ts, m.Payload.SenderLabel(), content)
	}
	return b.String(), nil
}
