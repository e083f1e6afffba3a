package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"pro-chat/internal/identity"
)

const (
	// A session with no reads, pongs or frames for this long is presumed
	// dead and presence-evicted.
	StaleSessionTimeout = 30 * time.Minute
	SweepInterval       = time.Minute

	frameTimeout = 10 * time.Second
)

// InboundFrame pairs a frame with the channel it arrived on.
type InboundFrame struct {
	Client *Client
	Frame  Frame
}

// Hub owns the connection lifecycle. Clients register and unregister
// through channels, a single loop serializing all lifecycle mutations;
// presence, delivery and fan-out hang off the registered set.
type Hub struct {
	InstanceID string

	Register   chan *Client
	Unregister chan *Client
	Frames     chan *InboundFrame

	// Registered channels by pointer. Separate from presence: presence holds
	// the newest channel per identity, this map tracks every channel whose
	// pumps are still running (a superseded tab lingers here until its read
	// pump exits).
	clients map[*Client]bool

	presence *Registry
	router   *Router
	events   *Broadcaster
	store    Store
	redis    *redis.Client
}

func NewHub(instanceID string, presence *Registry, router *Router, events *Broadcaster, store Store, redisClient *redis.Client) *Hub {
	return &Hub{
		InstanceID: instanceID,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Frames:     make(chan *InboundFrame),
		clients:    make(map[*Client]bool),
		presence:   presence,
		router:     router,
		events:     events,
		store:      store,
		redis:      redisClient,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.handleRegister(client)

		case client := <-h.Unregister:
			h.handleUnregister(client)

		case f := <-h.Frames:
			// Each frame is an independent unit of work; persistence may
			// block and must not stall other connections.
			go h.handleFrame(f)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = true

	// Last connection wins: a newer tab steals the identity's live channel.
	// The displaced channel keeps draining until its pumps notice the close.
	if displaced := h.presence.Register(c); displaced != nil {
		log.Printf("channel %s for %s superseded by %s", displaced.ChannelID, c.Identity, c.ChannelID)
		if h.clients[displaced] {
			delete(h.clients, displaced)
			displaced.shutdown()
		}
	} else {
		h.events.NotifyPresenceChange(c.Identity, true)
	}

	// Entering Connected: the client immediately learns its unread badge.
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()
	count, err := h.store.UnreadCount(ctx, c.Identity)
	if err != nil {
		log.Printf("unread count on connect for %s: %v", c.Identity, err)
		return
	}
	c.push(unreadEvent{Type: EventUnread, Count: count})
}

func (h *Hub) handleUnregister(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)

	// Evict presence first so no new push can resolve this channel, then
	// shut the channel down. Only the channel still registered for the
	// identity evicts presence; a stale disconnect from a superseded tab
	// changes nothing.
	evicted := h.presence.Unregister(c)
	c.shutdown()
	if evicted {
		h.events.NotifyPresenceChange(c.Identity, false)
	}
}

func (h *Hub) handleFrame(f *InboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch f.Frame.Type {
	case "send":
		out := Outbound{
			Sender:   f.Client.Identity,
			Receiver: f.Frame.Receiver,
			Content:  f.Frame.Content,
			Kind:     f.Frame.Kind,
			FileRef:  f.Frame.FileRef,
			FileName: f.Frame.FileName,
			FileSize: f.Frame.FileSize,
		}
		if _, _, err := h.router.Send(ctx, out); err != nil {
			log.Printf("send from %s failed: %v", f.Client.Identity, err)
			f.Client.push(errorEvent{Type: EventError, Error: sendFailureMessage(err)})
		}

	case "typing":
		h.router.Typing(f.Client.Identity, f.Frame.Receiver, true)

	case "stop_typing":
		h.router.Typing(f.Client.Identity, f.Frame.Receiver, false)

	default:
		log.Printf("unknown frame type %q from %s", f.Frame.Type, f.Client.Identity)
	}
}

// sendFailureMessage keeps the user-visible failure honest: a store error
// must read as "not sent", never as "sent".
func sendFailureMessage(err error) string {
	if errors.Is(err, ErrUnknownRecipient) {
		return "recipient does not exist"
	}
	return "message not sent — please retry"
}

// SubscribeToRedis feeds cross-instance envelopes into local delivery.
// Runs in its own goroutine for the life of the process.
func (h *Hub) SubscribeToRedis() {
	pubsub := h.redis.Subscribe(context.Background(), eventsChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("bad envelope from redis: %v", err)
			continue
		}
		if env.Origin == h.InstanceID {
			continue // already handled locally
		}
		h.dispatchEnvelope(env)
	}
}

func (h *Hub) dispatchEnvelope(env envelope) {
	if env.Target == nil {
		for _, c := range h.presence.Clients() {
			c.enqueue(env.Payload)
		}
		return
	}
	if c, ok := h.presence.Lookup(*env.Target); ok {
		if !c.enqueue(env.Payload) {
			log.Printf("dropped relayed event for %s", *env.Target)
		}
	}
}

// SweepStale evicts sessions idle past maxIdle. Closing the socket routes
// teardown through the normal unregister path.
func (h *Hub) SweepStale(interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		for _, c := range h.presence.Stale(maxIdle) {
			log.Printf("evicting stale session %s (%s)", c.ChannelID, c.Identity)
			if c.conn != nil {
				c.closeConn()
			} else {
				h.Unregister <- c
			}
		}
	}
}

// Online reports whether an identity currently holds a live channel here.
func (h *Hub) Online(p identity.Participant) bool {
	_, ok := h.presence.Lookup(p)
	return ok
}
