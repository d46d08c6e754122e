package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dchat/internal/domain"
	"dchat/internal/observability"
	"dchat/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 4096
	rpcTimeout     = 5 * time.Second

	// Send budget per connection: sustained rate and burst.
	sendRate  = 10
	sendBurst = 20
)

type Client struct {
	id       string
	registry *Registry
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	chat     *service.ChatService
	identity domain.Identity
	limiter  *rate.Limiter

	// Rooms this connection joined. Touched only by the read loop.
	rooms map[string]struct{}

	streamMu sync.Mutex
	streams  map[string]context.CancelFunc

	writeMu   sync.Mutex
	closed    atomic.Bool
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Carries conn_id and user_id on every line.
	log *slog.Logger
}

// NewClient wraps an upgraded connection. userID is empty for
// unauthenticated connections, which may subscribe and read history but
// not send.
func NewClient(ctx context.Context, registry *Registry, conn *websocket.Conn, userID string,
	chat *service.ChatService, identity domain.Identity) *Client {
	id := uuid.New().String()

	ctx = observability.WithConnID(ctx, id)
	if userID != "" {
		ctx = observability.WithUserID(ctx, userID)
	}
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		id:        id,
		registry:  registry,
		conn:      conn,
		send:      make(chan []byte, 256),
		userID:    userID,
		chat:      chat,
		identity:  identity,
		limiter:   rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		rooms:     make(map[string]struct{}),
		streams:   make(map[string]context.CancelFunc),
		ctx:       clientCtx,
		ctxCancel: cancel,
		log:       observability.FromContext(clientCtx),
	}
}

// ID returns the connection id used in logs.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) ReadPump() {
	observability.WebSocketConnectionsActive.Inc()
	defer func() {
		c.ctxCancel()
		c.cancelAllStreams()
		for name := range c.rooms {
			c.registry.Leave(name, c)
		}
		c.closeConnection()
		observability.WebSocketConnectionsActive.Dec()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("failed to set read deadline",
			slog.String("error", err.Error()))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket error",
					slog.String("error", err.Error()))
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.log.Warn("invalid frame",
				slog.String("error", err.Error()))
			c.reply(errorFrame("", CodeInvalidArgument, "malformed frame"))
			continue
		}

		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(f ClientFrame) {
	switch f.Type {
	case TypeSubscribe:
		if f.Room == "" {
			c.reply(errorFrame(f.ID, CodeInvalidArgument, "room is required"))
			return
		}
		c.registry.Join(f.Room, c)
		c.rooms[f.Room] = struct{}{}
		c.reply(resultFrame(f.ID))

	case TypeUnsubscribe:
		if f.Room == "" {
			c.reply(errorFrame(f.ID, CodeInvalidArgument, "room is required"))
			return
		}
		c.registry.Leave(f.Room, c)
		delete(c.rooms, f.Room)
		c.reply(resultFrame(f.ID))

	case TypeGetDefaultRoom:
		if !c.requireAuth(f.ID) {
			return
		}
		ctx, cancel := context.WithTimeout(c.ctx, rpcTimeout)
		room, err := c.identity.DefaultRoom(ctx, c.userID)
		cancel()
		if err != nil {
			c.replyError(f.ID, err)
			return
		}
		c.reply(ServerFrame{Type: TypeResult, ID: f.ID, Room: room})

	case TypeSetDefaultRoom:
		if !c.requireAuth(f.ID) {
			return
		}
		ctx, cancel := context.WithTimeout(c.ctx, rpcTimeout)
		err := c.identity.SetDefaultRoom(ctx, c.userID, f.Room)
		cancel()
		if err != nil {
			c.replyError(f.ID, err)
			return
		}
		c.reply(resultFrame(f.ID))

	case TypeSendMessage:
		if !c.requireAuth(f.ID) {
			return
		}
		if !c.limiter.Allow() {
			c.reply(errorFrame(f.ID, CodeRateLimited, "too many messages"))
			return
		}
		ctx, cancel := context.WithTimeout(c.ctx, rpcTimeout)
		view, err := c.chat.Send(ctx, c.userID, f.Room, f.Text)
		cancel()
		if err != nil {
			c.replyError(f.ID, err)
			return
		}
		c.reply(ServerFrame{Type: TypeResult, ID: f.ID, Message: view})

	case TypeMessagesBefore, TypeMessagesAfter:
		c.startStream(f)

	case TypeCancel:
		c.cancelStream(f.ID)

	default:
		c.reply(errorFrame(f.ID, CodeInvalidArgument, "unknown frame type"))
	}
}

// startStream runs a history request in its own goroutine so a long
// backfill never blocks the read loop, and registers its cancel func
// under the request id for cancel frames.
func (c *Client) startStream(f ClientFrame) {
	if f.ID == "" {
		c.reply(errorFrame("", CodeInvalidArgument, "id is required for history requests"))
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)

	c.streamMu.Lock()
	if _, exists := c.streams[f.ID]; exists {
		c.streamMu.Unlock()
		cancel()
		c.reply(errorFrame(f.ID, CodeInvalidArgument, "duplicate request id"))
		return
	}
	c.streams[f.ID] = cancel
	c.streamMu.Unlock()

	go func() {
		defer func() {
			cancel()
			c.streamMu.Lock()
			delete(c.streams, f.ID)
			c.streamMu.Unlock()
		}()

		var err error
		switch f.Type {
		case TypeMessagesBefore:
			err = c.streamBefore(ctx, f)
		case TypeMessagesAfter:
			err = c.streamAfter(ctx, f)
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.replyError(f.ID, err)
			return
		}
		if err := c.sendFrame(ctx, ServerFrame{Type: TypeComplete, ID: f.ID}); err != nil {
			c.log.Debug("history stream interrupted",
				slog.String("request_id", f.ID))
		}
	}()
}

// streamBefore sends one page of history, newest first.
func (c *Client) streamBefore(ctx context.Context, f ClientFrame) error {
	views, err := c.chat.MessagesBefore(ctx, f.Room, f.Before, f.Count)
	if err != nil {
		return err
	}
	for _, view := range views {
		if err := c.sendFrame(ctx, ServerFrame{Type: TypeMessage, ID: f.ID, Message: view}); err != nil {
			return err
		}
	}
	return nil
}

// streamAfter pages forward from the cursor until the room is drained.
// A page shorter than the effective page size means there is nothing
// left, so no trailing empty query is issued.
func (c *Client) streamAfter(ctx context.Context, f ClientFrame) error {
	limit := c.chat.HistoryPageSize(f.Count)
	after := f.After
	for {
		views, err := c.chat.MessagesAfter(ctx, f.Room, after, limit)
		if err != nil {
			return err
		}
		for _, view := range views {
			if err := c.sendFrame(ctx, ServerFrame{Type: TypeMessage, ID: f.ID, Message: view}); err != nil {
				return err
			}
		}
		if len(views) < limit {
			return nil
		}
		after = views[len(views)-1].ID
	}
}

func (c *Client) cancelStream(id string) {
	c.streamMu.Lock()
	cancel, ok := c.streams[id]
	if ok {
		delete(c.streams, id)
	}
	c.streamMu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Client) cancelAllStreams() {
	c.streamMu.Lock()
	for id, cancel := range c.streams {
		cancel()
		delete(c.streams, id)
	}
	c.streamMu.Unlock()
}

func (c *Client) requireAuth(id string) bool {
	if c.userID == "" {
		c.reply(errorFrame(id, CodeUnauthenticated, "authentication required"))
		return false
	}
	return true
}

// replyError maps a domain error onto an error frame. Unexpected errors
// are reported generically and logged.
func (c *Client) replyError(id string, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrUserNotFound):
		c.reply(errorFrame(id, CodeUnauthenticated, err.Error()))
	case errors.Is(err, domain.ErrInvalidArgument):
		c.reply(errorFrame(id, CodeInvalidArgument, err.Error()))
	default:
		c.log.Error("rpc failed",
			slog.String("error", err.Error()))
		c.reply(errorFrame(id, CodeInternal, "internal error"))
	}
}

// reply enqueues a frame without blocking. A connection that cannot keep
// up with its own replies is torn down.
func (c *Client) reply(frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("failed to marshal frame",
			slog.String("error", err.Error()))
		return
	}
	if !c.enqueue(data) {
		c.log.Warn("disconnecting slow client")
		c.shutdown()
	}
}

// sendFrame blocks until the frame is queued or the context ends. Used
// by history streams, which must not drop items.
func (c *Client) sendFrame(ctx context.Context, frame ServerFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// enqueue attempts a non-blocking queue of raw bytes for the write loop.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown tears the connection down from outside the read loop.
func (c *Client) shutdown() {
	c.ctxCancel()
	c.closeConnection()
}

// WritePump pumps queued frames to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.writeMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("failed to set write deadline",
			slog.String("error", err.Error()))
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
