package kurento

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Mosaic/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrClientClosed = errors.New("kurento: connection closed")

const _writeWait = 5 * time.Second

type eventHandler func(data json.RawMessage)

// Client is a JSON-RPC 2.0 connection to a Kurento media server.
// Calls are matched to responses by id; onEvent notifications are routed to
// the handler subscribed for (object, event type).
type Client struct {
	conn        *websocket.Conn
	callTimeout time.Duration
	logger      zerolog.Logger

	seq     atomic.Int64
	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[int64]chan *message
	handlers  map[string]eventHandler
	sessionID string

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial opens a client connection. The read loop runs until Close or a transport error.
func Dial(ctx context.Context, url string, callTimeout, keepalive time.Duration) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:        conn,
		callTimeout: callTimeout,
		logger:      log.With().Str("module", "adapters.kurento").Str("url", url).Logger(),
		pending:     make(map[int64]chan *message),
		handlers:    make(map[string]eventHandler),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	if keepalive > 0 {
		go c.keepalive(keepalive)
	}
	c.logger.Info().Msg("connected to media server")
	return c, nil
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) Close() error {
	c.shutdown(ErrClientClosed)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer func() {
		c.logger.Info().Msg("read loop closed")
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.Closed() {
				c.logger.Error().Err(err).Msg("read error")
			}
			c.shutdown(fmt.Errorf("%w: %v", ErrClientClosed, err))
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("bad json from media server")
			continue
		}
		switch {
		case msg.Method == "onEvent":
			c.dispatch(msg.Params)
		case msg.ID != nil:
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			delete(c.pending, *msg.ID)
			c.mu.Unlock()
			if !ok {
				c.logger.Debug().Int64("id", *msg.ID).Msg("response for unknown call")
				continue
			}
			ch <- &msg
		default:
			c.logger.Debug().Str("method", msg.Method).Msg("unhandled message")
		}
	}
}

func (c *Client) dispatch(raw json.RawMessage) {
	var ev eventParams
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logger.Warn().Err(err).Msg("bad event")
		return
	}
	c.mu.Lock()
	h, ok := c.handlers[handlerKey(ev.Value.Object, ev.Value.Type)]
	c.mu.Unlock()
	if !ok {
		return
	}
	h(ev.Value.Data)
}

func handlerKey(object, event string) string { return object + "/" + event }

// call sends one request and waits for its response, the context, or connection loss.
func (c *Client) call(ctx context.Context, method string, params any) (*result, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	id := c.seq.Add(1)
	ch := make(chan *message, 1)
	c.mu.Lock()
	if c.Closed() {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	start := time.Now()
	res, err := c.roundTrip(ctx, id, ch, request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params})
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}
	metrics.BackendCallDuration.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
	return res, err
}

func (c *Client) roundTrip(ctx context.Context, id int64, ch chan *message, req request) (*result, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(_writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, b)
	c.writeMu.Unlock()
	if err != nil {
		c.shutdown(fmt.Errorf("%w: %v", ErrClientClosed, err))
		return nil, err
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, msg.Error
		}
		if msg.Result == nil {
			return &result{}, nil
		}
		if msg.Result.SessionID != "" {
			c.mu.Lock()
			c.sessionID = msg.Result.SessionID
			c.mu.Unlock()
		}
		return msg.Result, nil
	case <-ctx.Done():
		c.logger.Warn().Int64("id", id).Str("method", req.Method).Msg("call abandoned")
		return nil, ctx.Err()
	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Create instantiates a media object and returns its id.
func (c *Client) Create(ctx context.Context, kind string, constructor map[string]any) (string, error) {
	if constructor == nil {
		constructor = map[string]any{}
	}
	res, err := c.call(ctx, "create", createParams{
		Type:              kind,
		ConstructorParams: constructor,
		Properties:        map[string]any{},
		SessionID:         c.session(),
	})
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(res.Value, &id); err != nil {
		return "", fmt.Errorf("create %s: bad object id: %w", kind, err)
	}
	return id, nil
}

// Invoke runs an operation on a media object and returns its raw return value.
func (c *Client) Invoke(ctx context.Context, object, operation string, params map[string]any) (json.RawMessage, error) {
	res, err := c.call(ctx, "invoke", invokeParams{
		Object:          object,
		Operation:       operation,
		OperationParams: params,
		SessionID:       c.session(),
	})
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Subscribe registers fn for event on object. The handler runs on the read loop
// and must not call back into the client synchronously.
func (c *Client) Subscribe(ctx context.Context, object, event string, fn eventHandler) error {
	c.mu.Lock()
	c.handlers[handlerKey(object, event)] = fn
	c.mu.Unlock()
	_, err := c.call(ctx, "subscribe", subscribeParams{
		Object:    object,
		Type:      event,
		SessionID: c.session(),
	})
	if err != nil {
		c.Unsubscribe(object, event)
	}
	return err
}

func (c *Client) Unsubscribe(object, event string) {
	c.mu.Lock()
	delete(c.handlers, handlerKey(object, event))
	c.mu.Unlock()
}

func (c *Client) Release(ctx context.Context, object string) error {
	_, err := c.call(ctx, "release", releaseParams{Object: object, SessionID: c.session()})
	return err
}

func (c *Client) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_, err := c.call(ctx, "ping", pingParams{Interval: (2 * interval).Milliseconds()})
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Msg("keepalive ping failed")
			}
		}
	}
}
