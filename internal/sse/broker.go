package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/cityford/trainer-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// FirehoseStream carries every session lifecycle event, for dashboard
// consumers watching all sessions at once.
const FirehoseStream = "all"

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent encodes data as the payload of a typed event.
func NewEvent(eventType string, data any) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: payload}, nil
}

type Client struct {
	StreamID string
	Events   chan Event
	Done     chan struct{}
}

// Broker fans session lifecycle events out to SSE clients. Events travel
// through Redis pub/sub so every server instance sees every stream.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // streamID -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(streamID string) *Client {
	client := &Client{
		StreamID: streamID,
		Events:   make(chan Event, 100),
		Done:     make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[streamID] == nil {
		b.clients[streamID] = make(map[*Client]bool)
		go b.subscribeToRedis(streamID)
	}
	b.clients[streamID][client] = true
	clientCount := len(b.clients[streamID])
	b.mu.Unlock()

	log.Info().
		Str("streamId", streamID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.StreamID]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.StreamID)
		}

		log.Info().
			Str("streamId", client.StreamID).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, streamID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.EventChannel(streamID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(streamID string) {
	channel := redisclient.EventChannel(streamID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("streamId", streamID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(streamID, event)
		}
	}
}

func (b *Broker) broadcast(streamID string, event Event) {
	b.mu.RLock()
	clients := b.clients[streamID]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("streamId", streamID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(streamID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[streamID])
}
