package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	RealtimeEventCommentCreated = "comment-created"
	RealtimeEventArticleLiked   = "article-liked"
	realtimeEventHeartbeat      = "heartbeat"
	realtimeSourceBackend       = "inkwell-api"

	defaultHeartbeatInterval = 25 * time.Second
	subscriberBufferSize     = 16
)

// RealtimeMessage notifies one user about activity on an article they wrote.
type RealtimeMessage struct {
	UserID    string
	EventType string
	ArticleID string
	CommentID string
	ActorID   string
	Timestamp time.Time
}

// RealtimeDispatcher fans messages out to every open stream of the addressed user.
// Slow subscribers drop messages instead of blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  subscriberBufferSize,
	}
}

// Subscribe registers a stream for userID that is removed when ctx ends or cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userID string) (<-chan RealtimeMessage, func()) {
	if userID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(userID, subscriber)

	var once sync.Once
	done := make(chan struct{})
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(userID, subscriber.id)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.UserID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.UserID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports how many streams are open for userID.
func (d *RealtimeDispatcher) SubscriberCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[userID])
}

func (d *RealtimeDispatcher) registerSubscriber(userID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	subscriber.id = d.nextID
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[userID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}

type realtimeEventPayload struct {
	ArticleID string `json:"articleId,omitempty"`
	CommentID string `json:"commentId,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

func (h *httpHandler) handleEventStream(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, userID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			if err := writeEvent(c, message.EventType, realtimeEventPayload{
				ArticleID: message.ArticleID,
				CommentID: message.CommentID,
				ActorID:   message.ActorID,
				Timestamp: message.Timestamp.UTC().Format(time.RFC3339Nano),
				Source:    realtimeSourceBackend,
			}); err != nil {
				h.logger.Debug("realtime stream closed", zap.String("user_id", userID), zap.Error(err))
				return
			}
		case tick := <-heartbeat.C:
			if err := writeEvent(c, realtimeEventHeartbeat, realtimeEventPayload{
				Timestamp: tick.UTC().Format(time.RFC3339Nano),
				Source:    realtimeSourceBackend,
			}); err != nil {
				h.logger.Debug("realtime stream closed", zap.String("user_id", userID), zap.Error(err))
				return
			}
		}
	}
}

func writeEvent(c *gin.Context, eventType string, payload realtimeEventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
