// Package client is the messaging object handed to content processes. It
// speaks the bridge envelope over one websocket connection and offers
// fire-and-forget, synchronous fire, invoke, and channel subscriptions.
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mullionhq/mullion/internal/bridge"
)

// Handler receives messages published on a subscribed channel.
type Handler func(payload json.RawMessage)

// Client connects one content process to the coordinator.
type Client struct {
	baseURL  string
	windowID int
	conn     *websocket.Conn

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan bridge.Message
	subs    map[string][]*subscription

	closeOnce sync.Once
	closed    chan struct{}
}

type subscription struct {
	fn   Handler
	once bool
}

// Dial connects to the coordinator's bridge endpoint for the given window.
// baseURL is the coordinator's HTTP address, e.g. "http://127.0.0.1:7430".
func Dial(baseURL string, windowID int) (*Client, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1)
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/bridge/%d", wsURL, windowID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial bridge: %w", err)
	}

	c := &Client{
		baseURL:  baseURL,
		windowID: windowID,
		conn:     conn,
		pending:  make(map[uint64]chan bridge.Message),
		subs:     make(map[string][]*subscription),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close tears down the connection. Pending invokes fail.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// Fire sends a message on a channel without waiting for anything.
func (c *Client) Fire(channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.write(bridge.Message{Channel: channel, Payload: raw})
}

// FireSync sends a message and waits for the single result the coordinator
// produces for it.
func (c *Client) FireSync(channel string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan bridge.Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(bridge.Message{Channel: channel, RequestID: id, Payload: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("bridge error: %s", resp.Error)
		}
		return resp.Payload, nil
	case <-c.closed:
		return nil, fmt.Errorf("bridge connection closed")
	}
}

// Invoke performs a request/response exchange, decoding the result into out
// when out is non-nil.
func (c *Client) Invoke(channel string, payload any, out any) error {
	raw, err := c.FireSync(channel, payload)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// Subscribe registers a persistent handler for a channel.
func (c *Client) Subscribe(channel string, fn Handler) {
	c.addSub(channel, &subscription{fn: fn})
}

// Once registers a handler removed after its first delivery.
func (c *Client) Once(channel string, fn Handler) {
	c.addSub(channel, &subscription{fn: fn, once: true})
}

// UnsubscribeAll removes every handler for a channel.
func (c *Client) UnsubscribeAll(channel string) {
	c.mu.Lock()
	delete(c.subs, channel)
	c.mu.Unlock()
}

// Env fetches the read-only environment descriptor for this window.
func (c *Client) Env() (bridge.Env, error) {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(fmt.Sprintf("%s/api/env/%d", c.baseURL, c.windowID))
	if err != nil {
		return bridge.Env{}, fmt.Errorf("failed to fetch env: %w", err)
	}
	defer resp.Body.Close()

	var env bridge.Env
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return bridge.Env{}, fmt.Errorf("failed to decode env: %w", err)
	}
	return env, nil
}

func (c *Client) addSub(channel string, sub *subscription) {
	c.mu.Lock()
	c.subs[channel] = append(c.subs[channel], sub)
	c.mu.Unlock()
}

func (c *Client) write(msg bridge.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		var msg bridge.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.ReplyTo != 0 {
			c.mu.Lock()
			ch := c.pending[msg.ReplyTo]
			delete(c.pending, msg.ReplyTo)
			c.mu.Unlock()
			if ch != nil {
				ch <- msg
			}
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg bridge.Message) {
	c.mu.Lock()
	subs := c.subs[msg.Channel]
	var kept []*subscription
	for _, sub := range subs {
		if !sub.once {
			kept = append(kept, sub)
		}
	}
	if len(subs) > 0 {
		c.subs[msg.Channel] = kept
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.fn(msg.Payload)
	}
}
