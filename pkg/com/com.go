// Package com carries signaling packets over a websocket connection.
package com

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/cloudview/cloudview/pkg/api"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type (
	Client struct {
		id       Uid
		conn     *websocket.Conn
		queue    map[string]*call
		onPacket func(packet api.In)
		done     chan struct{}
		log      *logger.Logger
		mu       sync.Mutex
	}
	call struct {
		done     chan struct{}
		err      error
		response api.In
	}
)

var (
	errConnClosed = errors.New("connection closed")
	errTimeout    = errors.New("timeout")
)

const (
	callTimeout    = 5 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 10 * 1024
)

// NewClient dials the signaling endpoint.
func NewClient(address url.URL, log *logger.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	id := NewUid()
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		id:    id,
		conn:  conn,
		queue: make(map[string]*call, 1),
		done:  make(chan struct{}),
		log:   log.Wrap(log.With().Str("cid", id.Short())),
	}, nil
}

func (c *Client) Id() Uid { return c.id }

func (c *Client) OnPacket(fn func(packet api.In)) {
	c.mu.Lock()
	c.onPacket = fn
	c.mu.Unlock()
}

// Listen reads packets until the connection dies. Blocking.
func (c *Client) Listen() {
	defer close(c.done)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read")
			}
			c.drain(errConnClosed)
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) Wait() chan struct{} { return c.done }

func (c *Client) Close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
	c.drain(errConnClosed)
}

// Call makes a blocking request and waits for the reply with the same id.
func (c *Client) Call(t api.PT, payload any) ([]byte, error) {
	c.log.Debug().Msgf("ᵇ%v →", t)
	id := NewUid().String()
	task := &call{done: make(chan struct{})}
	c.mu.Lock()
	c.queue[id] = task
	err := c.write(api.Out{Id: id, T: uint8(t), Payload: payload})
	c.mu.Unlock()
	if err != nil {
		c.pop(id)
		return nil, err
	}
	select {
	case <-task.done:
	case <-time.After(callTimeout):
		c.pop(id)
		task.err = errTimeout
	}
	return task.response.Payload, task.err
}

// Notify just sends a message and goes further.
func (c *Client) Notify(t api.PT, payload any) {
	c.log.Debug().Msgf("%v →", t)
	c.mu.Lock()
	if err := c.write(api.Out{T: uint8(t), Payload: payload}); err != nil {
		c.log.Error().Err(err).Msgf("%v", t)
	}
	c.mu.Unlock()
}

func (c *Client) write(packet api.Out) error {
	r, err := json.Marshal(&packet)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, r)
}

func (c *Client) handleMessage(message []byte) {
	var res api.In
	if err := json.Unmarshal(message, &res); err != nil {
		c.log.Error().Err(err).Msg("malformed packet")
		return
	}
	c.log.Debug().Msgf("← %v", res.T)
	// an empty id implies that we don't track (wait) the response
	if res.Id != "" {
		if task := c.pop(res.Id); task != nil {
			task.response = res
			close(task.done)
			return
		}
	}
	c.mu.Lock()
	fn := c.onPacket
	c.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// pop extracts and removes a task from the queue by its id.
func (c *Client) pop(id string) *call {
	c.mu.Lock()
	task := c.queue[id]
	delete(c.queue, id)
	c.mu.Unlock()
	return task
}

// drain cancels all what's left in the task queue.
func (c *Client) drain(err error) {
	c.mu.Lock()
	for id, task := range c.queue {
		if task.err == nil {
			task.err = err
			close(task.done)
		}
		delete(c.queue, id)
	}
	c.mu.Unlock()
}
