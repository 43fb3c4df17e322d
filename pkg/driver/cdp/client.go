package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/odvcencio/webshots/pkg/driver"
)

const defaultCallTimeout = 30 * time.Second

type rpcRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcMessage struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// client speaks DevTools JSON-RPC over one websocket. One command is in
// flight at a time; unsolicited protocol events arriving between the
// request and its response are discarded.
type client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID int64
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn}
}

func (c *client) close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *client) call(ctx context.Context, method string, params, result any) error {
	if c == nil || c.conn == nil {
		return driver.ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultCallTimeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrConnectionLost, err)
	}
	if err := c.conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return c.transportError(ctx, method, err)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrConnectionLost, err)
	}
	for {
		var msg rpcMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return c.transportError(ctx, method, err)
		}
		if msg.Method != "" || msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return driver.WrapCommandError(method, msg.Error.Message, nil)
		}
		if result == nil {
			return nil
		}
		if len(msg.Result) == 0 {
			return driver.WrapCommandError(method, "empty result", nil)
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return driver.WrapCommandError(method, "decode result", err)
		}
		return nil
	}
}

func (c *client) transportError(ctx context.Context, method string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return driver.WrapCommandError(method, "transport failure", fmt.Errorf("%w: %v", driver.ErrConnectionLost, err))
}
