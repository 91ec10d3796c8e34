// Package stream implements the transport-agnostic half of the card
// WebSocket contract: subscription bookkeeping, heartbeat pings, and the
// single goroutine that drives a user handler and streams validated card
// payloads to the client.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/adimis-ai/cereon-sdk/card"
	"github.com/adimis-ai/cereon-sdk/internal/platform/id"
	"github.com/adimis-ai/cereon-sdk/internal/platform/timeouts"
)

// ErrorPolicy governs what happens when an emitted item fails validation.
type ErrorPolicy string

const (
	// PolicyFail sends one error frame and closes the connection.
	PolicyFail ErrorPolicy = "fail"
	// PolicySkip drops the failing item without sending anything.
	PolicySkip ErrorPolicy = "skip"
	// PolicyLog sends one error-annotated frame and keeps streaming.
	PolicyLog ErrorPolicy = "log"
)

// Ack policies a subscription may request.
const (
	AckAuto   = "auto"
	AckManual = "manual"
)

// Client actions understood by a session.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
	ActionAck         = "ack"
)

// Subscription records a client's interest in a topic. It lives only for the
// duration of the connection that registered it.
type Subscription struct {
	Topic      string         `json:"topic"`
	AckPolicy  string         `json:"ackPolicy"`
	ClientInfo map[string]any `json:"clientInfo"`
}

// Sender is the socket write half a transport provides. Session serializes
// calls to SendJSON, so implementations do not need their own locking.
type Sender interface {
	SendJSON(v any) error
	Close() error
}

// Request carries the connection context a handler works with.
type Request struct {
	// Params is the normalized handshake parameter mapping.
	Params map[string]any
	// Filters is the params "filters" value, nil when absent.
	Filters any
	// Subscriptions returns a snapshot of the active subscriptions.
	Subscriptions func() map[string]Subscription
}

// Handler streams card payloads for an active connection. Each item passed to
// emit is validated and forwarded to the client. The handler should return
// when ctx ends or it has nothing left to produce; emit reports a non-nil
// error when streaming cannot continue.
type Handler func(ctx context.Context, req *Request, emit func(item any) error) error

// Options configure a Session.
type Options struct {
	// Validator checks each emitted item. Nil sends items unvalidated.
	Validator card.Validator
	// Heartbeat is the interval between server ping frames. Zero applies
	// the default; a negative value disables the heartbeat.
	Heartbeat time.Duration
	// ErrorPolicy selects the validation failure behavior. Default PolicySkip.
	ErrorPolicy ErrorPolicy
	// AckPolicy is the default subscription ack policy. Default AckAuto.
	AckPolicy string
	// OnAck observes ack messages for callers that track delivery state.
	OnAck func(content map[string]any)
}

// Session owns the per-connection state of the card streaming contract.
// A transport feeds it raw client messages and it writes frames back through
// the Sender. All state is private to the connection; the mutex only guards
// against the session's own handler and heartbeat goroutines.
type Session struct {
	sender  Sender
	handler Handler
	opts    Options
	params  map[string]any
	clock   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.Mutex

	mu          sync.Mutex
	subs        map[string]Subscription
	lastMessage map[string]any
	handlerDone chan struct{}
	closed      bool
}

// NewSession builds a session for one connection. A nil sender or handler is
// a programming error and panics immediately.
func NewSession(sender Sender, handler Handler, connParams map[string]any, opts Options) *Session {
	if sender == nil {
		panic("stream: sender is required")
	}
	if handler == nil {
		panic("stream: handler is required")
	}
	if opts.Heartbeat == 0 {
		opts.Heartbeat = timeouts.Heartbeat
	}
	if opts.ErrorPolicy == "" {
		opts.ErrorPolicy = PolicySkip
	}
	if opts.AckPolicy == "" {
		opts.AckPolicy = AckAuto
	}
	if connParams == nil {
		connParams = map[string]any{}
	}
	return &Session{
		sender:  sender,
		handler: handler,
		opts:    opts,
		params:  connParams,
		clock:   time.Now,
		subs:    make(map[string]Subscription),
	}
}

// Start begins the heartbeat and anchors the lifetime of background work to
// ctx. It must be called once before messages are dispatched.
func (s *Session) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	if s.opts.Heartbeat > 0 {
		go s.heartbeatLoop(s.ctx)
	}
}

// Close cancels the handler and heartbeat goroutines and closes the sender.
// It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	_ = s.sender.Close()
}

// Params returns the normalized handshake parameters.
func (s *Session) Params() map[string]any {
	return s.params
}

// Subscriptions returns a snapshot of the active subscriptions.
func (s *Session) Subscriptions() map[string]Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]Subscription, len(s.subs))
	for key, sub := range s.subs {
		snapshot[key] = sub
	}
	return snapshot
}

// LastMessage returns the most recent message with an unrecognized action.
func (s *Session) LastMessage() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessage
}

// HandleMessage decodes one raw client message and dispatches it. Malformed
// JSON produces an error frame and is never fatal to the connection.
func (s *Session) HandleMessage(raw []byte) {
	var content map[string]any
	if err := json.Unmarshal(raw, &content); err != nil {
		s.sendError("invalid JSON message")
		return
	}
	s.Dispatch(content)
}

// Dispatch routes one decoded client message by its action field.
func (s *Session) Dispatch(content map[string]any) {
	action, _ := content["action"].(string)
	switch action {
	case ActionSubscribe:
		s.handleSubscribe(content)
	case ActionUnsubscribe:
		s.handleUnsubscribe(content)
	case ActionPing:
		s.sendJSON(map[string]any{"action": "pong", "timestamp": s.timestamp()})
	case ActionAck:
		if s.opts.OnAck != nil {
			s.opts.OnAck(content)
		}
	default:
		s.mu.Lock()
		s.lastMessage = content
		s.mu.Unlock()
	}
}

func (s *Session) handleSubscribe(content map[string]any) {
	subID, _ := content["subscriptionId"].(string)
	if subID == "" {
		subID = "sub-" + newID()
	}
	topic, _ := content["topic"].(string)
	ackPolicy, _ := content["ackPolicy"].(string)
	if ackPolicy == "" {
		ackPolicy = s.opts.AckPolicy
	}
	clientInfo, _ := content["clientInfo"].(map[string]any)

	s.mu.Lock()
	s.subs[subID] = Subscription{
		Topic:      topic,
		AckPolicy:  ackPolicy,
		ClientInfo: clientInfo,
	}
	startHandler := s.handlerDone == nil || isClosed(s.handlerDone)
	if startHandler {
		s.handlerDone = make(chan struct{})
	}
	done := s.handlerDone
	s.mu.Unlock()

	s.sendJSON(map[string]any{
		"action":         "subscribed",
		"subscriptionId": subID,
		"topic":          topic,
		"timestamp":      s.timestamp(),
	})

	if startHandler {
		go s.runHandler(s.ctx, done)
	}
}

func (s *Session) handleUnsubscribe(content map[string]any) {
	subID, _ := content["subscriptionId"].(string)

	s.mu.Lock()
	_, ok := s.subs[subID]
	if ok {
		delete(s.subs, subID)
	}
	s.mu.Unlock()

	// unknown ids are a no-op
	if !ok {
		return
	}
	s.sendJSON(map[string]any{
		"action":         "unsubscribed",
		"subscriptionId": subID,
		"timestamp":      s.timestamp(),
	})
}

// runHandler drives the user handler and streams each produced item. At most
// one handler goroutine is alive per session; a finished one is replaced on
// the next subscribe.
func (s *Session) runHandler(ctx context.Context, done chan struct{}) {
	defer close(done)

	req := &Request{
		Params:        s.params,
		Filters:       s.params["filters"],
		Subscriptions: s.Subscriptions,
	}
	if err := s.handler(ctx, req, s.emit); err != nil && ctx.Err() == nil {
		s.sendJSON(map[string]any{
			"action":    "error",
			"message":   fmt.Sprintf("Handler error: %v", err),
			"timestamp": s.timestamp(),
		})
	}
}

// emit validates one handler item and sends it as a data frame, honoring the
// configured validation failure policy.
func (s *Session) emit(item any) error {
	out := item
	if s.opts.Validator != nil {
		validated, err := s.opts.Validator.Validate(item)
		if err != nil {
			return s.handleInvalid(err)
		}
		out = validated
	}

	frame := map[string]any{
		"data":            out,
		"timestamp":       s.timestamp(),
		"subscriptionIds": s.subscriptionIDs(),
	}
	if s.anyManualAck() {
		frame["id"] = "msg-" + newID()
	}
	return s.sendJSON(frame)
}

func (s *Session) handleInvalid(err error) error {
	switch s.opts.ErrorPolicy {
	case PolicyFail:
		s.sendError(err.Error())
		s.Close()
		return err
	case PolicyLog:
		s.sendJSON(map[string]any{
			"action":             "error",
			"__validation_error": err.Error(),
			"timestamp":          s.timestamp(),
		})
		return nil
	default:
		return nil
	}
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendJSON(map[string]any{"action": "ping", "timestamp": s.timestamp()})
		}
	}
}

func (s *Session) subscriptionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.subs))
	for subID := range s.subs {
		ids = append(ids, subID)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) anyManualAck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.AckPolicy == AckManual {
			return true
		}
	}
	return false
}

func (s *Session) sendError(message string) {
	s.sendJSON(map[string]any{
		"action":    "error",
		"message":   message,
		"timestamp": s.timestamp(),
	})
}

func (s *Session) sendJSON(v any) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("session is closed")
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.sender.SendJSON(v); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

func (s *Session) timestamp() string {
	return s.clock().UTC().Format(time.RFC3339)
}

func newID() string {
	generated, err := id.NewID()
	if err != nil {
		log.Printf("stream: id generation failed, using timestamp fallback: %v", err)
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return generated
}

func isClosed(done chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
