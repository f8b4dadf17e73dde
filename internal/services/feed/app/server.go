// Package server hosts the live event feed: the worker pushes journal
// events over an ingest WebSocket and the hub fans them out to clan rooms
// and the firehose.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/brink.zone/internal/platform/timeouts"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/net/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	ingestTokenHeader = "X-Feed-Token"

	maxFramePayloadBytes = 32 * 1024
	subscriberBuffer     = 64
)

// Config defines the inputs for the feed transport boundary.
type Config struct {
	HTTPAddr          string
	HealthPort        int
	IngestToken       string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the feed HTTP/WebSocket process and its health endpoint.
type Server struct {
	httpAddr        string
	healthPort      int
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// wsFrame is the feed wire format. Subscribe frames carry the clan id at
// the top level; event frames carry the journal event in the payload.
type wsFrame struct {
	Type    string          `json:"type"`
	ClanID  string          `json:"clan_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// eventClanEnvelope peeks at the clan scope of an ingested event payload.
type eventClanEnvelope struct {
	ClanID string `json:"clan_id"`
}

// subscriber is one /ws connection. Frames queue on a bounded channel a
// writer goroutine drains; a full queue drops the subscriber rather than
// blocking the broadcast.
type subscriber struct {
	frames chan wsFrame

	// Guarded by the hub mutex.
	clanID     string
	subscribed bool
	closed     bool
}

func newSubscriber() *subscriber {
	return &subscriber{frames: make(chan wsFrame, subscriberBuffer)}
}

// feedHub routes event frames to clan rooms and the firehose. Subscribers
// with an empty clan id ride the firehose and see every event.
type feedHub struct {
	mu       sync.Mutex
	rooms    map[string]map[*subscriber]struct{}
	firehose map[*subscriber]struct{}
}

func newFeedHub() *feedHub {
	return &feedHub{
		rooms:    make(map[string]map[*subscriber]struct{}),
		firehose: make(map[*subscriber]struct{}),
	}
}

// subscribe moves sub to the clan room, or the firehose for an empty clan
// id. Re-subscribing switches rooms.
func (h *feedHub) subscribe(sub *subscriber, clanID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	h.detachLocked(sub)
	if clanID == "" {
		h.firehose[sub] = struct{}{}
	} else {
		room, ok := h.rooms[clanID]
		if !ok {
			room = make(map[*subscriber]struct{})
			h.rooms[clanID] = room
		}
		room[sub] = struct{}{}
	}
	sub.clanID = clanID
	sub.subscribed = true
}

// remove drops sub from the hub and closes its frame queue. Safe to call
// more than once.
func (h *feedHub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *feedHub) removeLocked(sub *subscriber) {
	if sub.closed {
		return
	}
	h.detachLocked(sub)
	sub.closed = true
	close(sub.frames)
}

func (h *feedHub) detachLocked(sub *subscriber) {
	if !sub.subscribed {
		return
	}
	if sub.clanID == "" {
		delete(h.firehose, sub)
	} else if room, ok := h.rooms[sub.clanID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.clanID)
		}
	}
	sub.subscribed = false
}

// broadcast fans frame out to the firehose and, for clan-scoped events,
// the clan room. Subscribers whose queue is full are dropped.
func (h *feedHub) broadcast(clanID string, frame wsFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*subscriber
	push := func(sub *subscriber) {
		select {
		case sub.frames <- frame:
		default:
			slow = append(slow, sub)
		}
	}
	for sub := range h.firehose {
		push(sub)
	}
	if clanID != "" {
		for sub := range h.rooms[clanID] {
			push(sub)
		}
	}
	for _, sub := range slow {
		log.Printf("feed: dropping slow subscriber in room %q", sub.clanID)
		h.removeLocked(sub)
	}
}

// NewHandler creates the feed routes. An empty ingest token leaves the
// ingest socket ungated, which is the test and local-dev path.
func NewHandler(ingestToken string) http.Handler {
	hub := newFeedHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	subscriberHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleSubscriberConn(conn, hub)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		subscriberHandler.ServeHTTP(w, r)
	})

	ingestHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleIngestConn(conn, hub)
	})
	mux.HandleFunc("/ws/ingest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if ingestToken != "" && r.Header.Get(ingestTokenHeader) != ingestToken {
			log.Printf("feed: ingest unauthorized for remote=%s", r.RemoteAddr)
			http.Error(w, "ingest token required", http.StatusUnauthorized)
			return
		}
		ingestHandler.ServeHTTP(w, r)
	})

	return mux
}

func handleSubscriberConn(conn *websocket.Conn, hub *feedHub) {
	sub := newSubscriber()

	encoder := json.NewEncoder(conn)
	var encodeMu sync.Mutex
	writeFrame := func(frame wsFrame) error {
		encodeMu.Lock()
		defer encodeMu.Unlock()
		return encoder.Encode(frame)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range sub.frames {
			if err := writeFrame(frame); err != nil {
				hub.remove(sub)
				return
			}
		}
	}()
	// The writer only exits once remove closes the frame queue, so the
	// removal has to happen before the wait.
	defer func() {
		hub.remove(sub)
		<-writerDone
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			return
		}
		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeFrame(errorFrame("INVALID_ARGUMENT", "payload too large"))
			continue
		}

		switch frame.Type {
		case "subscribe":
			clanID := strings.TrimSpace(frame.ClanID)
			hub.subscribe(sub, clanID)
			_ = writeFrame(wsFrame{Type: "subscribed", ClanID: clanID})
		default:
			_ = writeFrame(errorFrame("INVALID_ARGUMENT", "unsupported frame type"))
		}
	}
}

func handleIngestConn(conn *websocket.Conn, hub *feedHub) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("feed: ingest decode: %v", err)
			}
			return
		}
		if frame.Type != "event" || len(frame.Payload) == 0 {
			continue
		}
		if len(frame.Payload) > maxFramePayloadBytes {
			log.Printf("feed: dropping oversized ingest frame (%d bytes)", len(frame.Payload))
			continue
		}

		var scope eventClanEnvelope
		if err := json.Unmarshal(frame.Payload, &scope); err != nil {
			log.Printf("feed: dropping unparseable ingest payload: %v", err)
			continue
		}
		hub.broadcast(strings.TrimSpace(scope.ClanID), wsFrame{Type: "event", Payload: frame.Payload})
	}
}

func errorFrame(code, message string) wsFrame {
	payload, err := json.Marshal(wsErrorPayload{Code: code, Message: message})
	if err != nil {
		log.Printf("feed: marshal error frame: %v", err)
		return wsFrame{Type: "error"}
	}
	return wsFrame{Type: "error", Payload: payload}
}

// NewServer builds a configured feed server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(strings.TrimSpace(config.IngestToken)),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		healthPort:      config.HealthPort,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
	}, nil
}

// Run creates and serves a feed server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init feed server: %w", err)
	}

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve feed: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server, plus the gRPC health endpoint when
// a health port is configured, until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("feed server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	if s.healthPort > 0 {
		stopHealth, err := s.serveHealth()
		if err != nil {
			return err
		}
		defer stopHealth()
	}

	serveErr := make(chan error, 1)
	log.Printf("feed server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) serveHealth() (func(), error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.healthPort))
	if err != nil {
		return nil, fmt.Errorf("listen on feed health port %d: %w", s.healthPort, err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("feed.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()

	return func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
		_ = listener.Close()
	}, nil
}
