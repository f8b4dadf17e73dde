package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/brink.zone/internal/wmd/event"
	"golang.org/x/net/websocket"
)

const feedTokenHeader = "X-Feed-Token"

// eventFrame is the wire shape pushed to the feed's ingest socket and
// POSTed to webhooks. The feed fans the payload out verbatim.
type eventFrame struct {
	Type    string       `json:"type"`
	Payload eventPayload `json:"payload"`
}

type eventPayload struct {
	Seq       uint64          `json:"seq"`
	EventType string          `json:"event_type"`
	ActorID   string          `json:"actor_id,omitempty"`
	ClanID    string          `json:"clan_id,omitempty"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ChainHash string          `json:"chain_hash"`
	CreatedAt string          `json:"created_at"`
}

func frameFor(evt event.Event) eventFrame {
	return eventFrame{
		Type: "event",
		Payload: eventPayload{
			Seq:       evt.Seq,
			EventType: string(evt.Type),
			ActorID:   evt.ActorID,
			ClanID:    evt.ClanID,
			EntityID:  evt.EntityID,
			Payload:   evt.Payload,
			ChainHash: evt.ChainHash,
			CreatedAt: evt.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// LogSink writes delivered events to the process log. It never fails, so
// a worker with only the log sink drains its outbox unconditionally.
type LogSink struct{}

// Name implements Sink.
func (LogSink) Name() string { return "log" }

// Deliver implements Sink.
func (LogSink) Deliver(_ context.Context, evt event.Event) error {
	log.Printf("worker: event seq=%d type=%s entity=%s clan=%q", evt.Seq, evt.Type, evt.EntityID, evt.ClanID)
	return nil
}

// WebhookSink POSTs each event as JSON to a configured URL. Any non-2xx
// response is a delivery failure.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a webhook sink for url.
func NewWebhookSink(url string) (*WebhookSink, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("webhook url is required")
	}
	return &WebhookSink{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver implements Sink.
func (s *WebhookSink) Deliver(ctx context.Context, evt event.Event) error {
	body, err := json.Marshal(frameFor(evt).Payload)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", evt.Seq, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// FeedSink pushes events to the live feed's ingest WebSocket. The
// connection is dialed lazily and dropped on any write error, so the next
// delivery attempt reconnects.
type FeedSink struct {
	url   string
	token string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewFeedSink builds a feed sink for the ingest endpoint at url
// (ws:// or wss://). The token rides on every dial when set.
func NewFeedSink(url, token string) (*FeedSink, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("feed url is required")
	}
	return &FeedSink{url: url, token: strings.TrimSpace(token)}, nil
}

// Name implements Sink.
func (s *FeedSink) Name() string { return "feed" }

// Deliver implements Sink.
func (s *FeedSink) Deliver(_ context.Context, evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.connLocked()
	if err != nil {
		return err
	}
	if err := json.NewEncoder(conn).Encode(frameFor(evt)); err != nil {
		s.dropLocked()
		return fmt.Errorf("push event %d to feed: %w", evt.Seq, err)
	}
	return nil
}

// Close drops the feed connection if one is open.
func (s *FeedSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}

func (s *FeedSink) connLocked() (*websocket.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	origin := "http" + strings.TrimPrefix(s.url, "ws")
	config, err := websocket.NewConfig(s.url, origin)
	if err != nil {
		return nil, fmt.Errorf("configure feed dial: %w", err)
	}
	if s.token != "" {
		config.Header = make(http.Header)
		config.Header.Set(feedTokenHeader, s.token)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, fmt.Errorf("dial feed %s: %w", s.url, err)
	}
	s.conn = conn
	return conn, nil
}

func (s *FeedSink) dropLocked() {
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()
	s.conn = nil
}
