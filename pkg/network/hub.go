package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"github.com/illum/orbitsim/pkg/event"
	"github.com/illum/orbitsim/pkg/logging"
	"github.com/illum/orbitsim/pkg/validation"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Reasons used as the label of the dropped-messages counter.
const (
	dropBufferFull  = "buffer_full"
	dropBreakerOpen = "breaker_open"
	dropRateLimited = "rate_limited"
)

// wsClient is one WebSocket connection. readPump and writePump run in
// goroutines tracked by the resource manager; everything else only enqueues.
type wsClient struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	conn    *websocket.Conn
	send    chan []byte
	breaker *Breaker
	server  *Server
	logger  *logging.Logger

	closeOnce sync.Once
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		s.writeError(w, r, http.StatusServiceUnavailable, CodeInternal, ErrServerClosed.Error())
		return
	}
	if limit := s.cfg.Server.MaxClients; limit > 0 && s.ClientCount() >= limit {
		s.writeError(w, r, http.StatusServiceUnavailable, CodeInternal, ErrServerFull.Error())
		return
	}

	header := http.Header{}
	header.Set(CorrelationHeader, logging.GetCorrelationID(r.Context()))
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	s.serveClient(conn, logging.GetCorrelationID(r.Context()))
}

// serveClient registers conn, queues the current state for it and starts its
// pumps.
func (s *Server) serveClient(conn *websocket.Conn, requestID string) {
	id := logging.GenerateCorrelationID()
	ctx, cancel := context.WithCancel(logging.WithCorrelationID(context.Background(), id))

	c := &wsClient{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		conn:    conn,
		send:    make(chan []byte, max(s.cfg.Stream.SendBuffer, 1)),
		breaker: NewBreaker("ws-"+id, s.cfg.CircuitBreaker, s.logger),
		server:  s,
		logger:  s.logger.With("client_id", id),
	}

	if err := s.register(c); err != nil {
		s.logger.Warn(ctx, "connection refused", "reason", err.Error(), "request_id", requestID)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		cancel()
		conn.Close()
		return
	}

	if msg, err := EncodeEnvelope(MsgState, "", statePayloadFromSnapshot(s.session.Snapshot())); err == nil {
		c.enqueue(msg)
	}

	if err := s.resources.Go(ctx, "ws-write-"+id, c.writePump); err != nil {
		c.logger.Error(ctx, "cannot start write pump", err)
		c.closeWithReason(websocket.CloseTryAgainLater, "server busy")
		return
	}
	if err := s.resources.Go(ctx, "ws-read-"+id, c.readPump); err != nil {
		c.logger.Error(ctx, "cannot start read pump", err)
		c.closeWithReason(websocket.CloseTryAgainLater, "server busy")
		return
	}

	c.logger.Info(ctx, "client connected", "remote", conn.RemoteAddr().String(), "request_id", requestID)
}

func (s *Server) register(c *wsClient) error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closed.Load() {
		return ErrServerClosed
	}
	if limit := s.cfg.Server.MaxClients; limit > 0 && len(s.clients) >= limit {
		return ErrServerFull
	}
	s.clients[c.id] = c
	s.setClientGauge(len(s.clients))
	return nil
}

func (s *Server) unregister(c *wsClient) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		s.setClientGauge(len(s.clients))
	}
	s.clientsMu.Unlock()

	s.commandLimiter.Forget(c.id)
}

func (s *Server) setClientGauge(n int) {
	if s.metrics != nil {
		s.metrics.ConnectedClients.Set(float64(n))
	}
}

func (s *Server) countDropped(reason string) {
	if s.metrics != nil {
		s.metrics.MessagesDropped.WithLabelValues(reason).Inc()
	}
}

// broadcast queues msg for every client. It never blocks, so it is safe to
// call from session event handlers.
func (s *Server) broadcast(msg []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		c.enqueue(msg)
	}
}

func (s *Server) onStateChanged(e event.Event) {
	se, ok := e.(*event.StateEvent)
	if !ok || s.ClientCount() == 0 {
		return
	}
	msg, err := EncodeEnvelope(MsgStateChanged, "", statePayloadFromEvent(se))
	if err != nil {
		s.logger.Error(context.Background(), "encoding state", err)
		return
	}
	s.broadcast(msg)
}

// onRateSampled forwards samples at most Stream.RateSampleHz times a second.
func (s *Server) onRateSampled(e event.Event) {
	re, ok := e.(*event.RateEvent)
	if !ok || s.ClientCount() == 0 || !s.sampleLimiter.Allow() {
		return
	}
	msg, err := EncodeEnvelope(MsgRateSample, "", ratePayloadFromEvent(re))
	if err != nil {
		s.logger.Error(context.Background(), "encoding rate sample", err)
		return
	}
	s.broadcast(msg)
}

func (c *wsClient) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		c.server.countDropped(dropBufferFull)
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.server.unregister(c)
		c.conn.Close()
		c.logger.Info(c.ctx, "client disconnected")
	})
}

func (c *wsClient) closeWithReason(code int, reason string) {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	c.close()
}

func (c *wsClient) readPump(ctx context.Context) {
	stop := context.AfterFunc(ctx, c.close)
	defer stop()
	defer c.close()

	c.conn.SetReadLimit(validation.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(ctx, "read failed", "error", err.Error())
			}
			return
		}
		c.handleMessage(ctx, data)
	}
}

func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			err = c.write(ctx, websocket.TextMessage, msg)
		case <-ticker.C:
			err = c.write(ctx, websocket.PingMessage, nil)
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.server.countDropped(dropBreakerOpen)
			c.logger.Warn(ctx, "dropping client after repeated write failures")
			return
		}
	}
}

func (c *wsClient) write(ctx context.Context, messageType int, data []byte) error {
	return c.breaker.Execute(ctx, func() error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return c.conn.WriteMessage(messageType, data)
	})
}

func (c *wsClient) handleMessage(ctx context.Context, data []byte) {
	if err := validation.ValidateMessage(data); err != nil {
		c.sendError("", CodeBadRequest, err.Error())
		return
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError("", CodeBadRequest, err.Error())
		return
	}

	if !c.server.commandLimiter.Allow(c.id) {
		c.server.countDropped(dropRateLimited)
		c.sendError(env.ID, CodeRateLimited, "too many commands")
		return
	}

	if env.Type == MsgGetState {
		c.sendEnvelope(MsgState, env.ID, statePayloadFromSnapshot(c.server.session.Snapshot()))
		return
	}

	// Accepted edits reach this client as state_changed with every other one.
	if _, err := applyEdit(c.server.session, env.Type, env.Payload); err != nil {
		_, code := classifyError(err)
		c.logger.Debug(ctx, "command refused", "type", string(env.Type), "code", code)
		c.sendError(env.ID, code, err.Error())
	}
}

func (c *wsClient) sendEnvelope(t MessageType, id string, payload interface{}) {
	msg, err := EncodeEnvelope(t, id, payload)
	if err != nil {
		c.logger.Error(c.ctx, "encoding reply", err, "type", string(t))
		return
	}
	c.enqueue(msg)
}

func (c *wsClient) sendError(id, code, message string) {
	c.sendEnvelope(MsgError, id, ErrorPayload{Code: code, Message: message})
}
