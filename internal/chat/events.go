package chat

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"pro-chat/internal/identity"
)

// eventsChannel is the Redis pub/sub channel instances bridge live events
// over. An envelope addressed to an identity that is present on another
// instance gets delivered there; everything stays best-effort.
const eventsChannel = "chat:events"

// Publisher is the slice of the Redis client the broadcaster needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// envelope is the cross-instance wrapper. Target nil means broadcast to
// every connected channel. Origin lets an instance skip its own messages,
// so each connection sees at most one delivery attempt.
type envelope struct {
	Origin  string                `json:"origin"`
	Target  *identity.Participant `json:"target,omitempty"`
	Payload json.RawMessage       `json:"payload"`
}

// Broadcaster fans ephemeral events out to live channels. Nothing here is
// persisted or retried: if the target is not reachable the event is simply
// dropped.
type Broadcaster struct {
	instanceID string
	presence   *Registry
	redis      Publisher
}

func NewBroadcaster(instanceID string, presence *Registry, pub Publisher) *Broadcaster {
	return &Broadcaster{
		instanceID: instanceID,
		presence:   presence,
		redis:      pub,
	}
}

// deliver pushes an event to the target's channel on this instance if it is
// present, otherwise relays it over Redis for other instances. Reports
// whether the event actually reached the local channel's buffer, so a
// dropped push reads as not delivered.
func (b *Broadcaster) deliver(target identity.Participant, event interface{}) bool {
	if c, ok := b.presence.Lookup(target); ok {
		if c.push(event) {
			return true
		}
		// Slow or broken channel. The event is an optimization, never the
		// payload of record, so a drop is only worth a log line.
		log.Printf("dropped event for %s on channel %s", target, c.ChannelID)
		return false
	}
	b.relay(&target, event)
	return false
}

// relay publishes an envelope to Redis. target nil broadcasts.
func (b *Broadcaster) relay(target *identity.Participant, event interface{}) {
	if b.redis == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal relay event: %v", err)
		return
	}
	data, err := json.Marshal(envelope{Origin: b.instanceID, Target: target, Payload: payload})
	if err != nil {
		log.Printf("marshal envelope: %v", err)
		return
	}
	if err := b.redis.Publish(context.Background(), eventsChannel, data).Err(); err != nil {
		log.Printf("redis publish: %v", err)
	}
}

// NotifyTyping forwards a typing indicator to the receiver only.
func (b *Broadcaster) NotifyTyping(receiver, from identity.Participant, typing bool) {
	b.deliver(receiver, typingEvent{Type: EventTyping, From: from, Typing: typing})
}

// NotifyPresenceChange tells every connected channel that someone came
// online or went offline. Presence is not privacy-sensitive here, so a
// plain fan-out is fine.
func (b *Broadcaster) NotifyPresenceChange(who identity.Participant, online bool) {
	event := presenceEvent{Type: EventPresence, Who: who, Online: online}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal presence event: %v", err)
		return
	}
	for _, c := range b.presence.Clients() {
		c.enqueue(data)
	}
	b.relay(nil, event)
}

// NotifyUnreadCount pushes a fresh unread badge to one participant.
func (b *Broadcaster) NotifyUnreadCount(target identity.Participant, count int) {
	b.deliver(target, unreadEvent{Type: EventUnread, Count: count})
}

// NotifyRefresh tells one participant to refetch its conversation list.
func (b *Broadcaster) NotifyRefresh(target identity.Participant) {
	b.deliver(target, refreshEvent{Type: EventRefresh})
}
