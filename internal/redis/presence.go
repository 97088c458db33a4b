package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mossy-p/webrtc-relay/config"
	"github.com/redis/go-redis/v9"
)

const (
	queueSize = 1024
	opTimeout = 2 * time.Second
)

type opKind int

const (
	opJoin opKind = iota
	opLeave
)

type op struct {
	kind      opKind
	roomID    string
	clientID  string
	role      string
	remaining int
}

// Presence mirrors room membership into Redis as one hash per room
// (room:<id>:peers, clientId -> role) so other services can observe who is
// connected. It is write-only: the relay never reads it back.
//
// Updates are queued without blocking and applied in order by a single
// worker; when the queue is full the update is dropped and logged.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger

	ops       chan op
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// Connect initializes the Redis client and verifies connectivity.
func Connect(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*Presence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, cfg.TTL, log), nil
}

func New(client *redis.Client, ttl time.Duration, log *slog.Logger) *Presence {
	return &Presence{
		client: client,
		ttl:    ttl,
		log:    log,
		ops:    make(chan op, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func roomKey(roomID string) string {
	return "room:" + roomID + ":peers"
}

// Reset deletes every presence key left behind by a previous process.
func (p *Presence) Reset(ctx context.Context) error {
	iter := p.client.Scan(ctx, 0, roomKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	p.log.Info("presence.reset", "keys", len(keys))
	return nil
}

// Start launches the worker that applies queued updates.
func (p *Presence) Start() {
	p.startOnce.Do(func() {
		go p.run()
	})
}

func (p *Presence) PeerJoined(roomID, clientID, role string) {
	p.enqueue(op{kind: opJoin, roomID: roomID, clientID: clientID, role: role})
}

func (p *Presence) PeerLeft(roomID, clientID string, remaining int) {
	p.enqueue(op{kind: opLeave, roomID: roomID, clientID: clientID, remaining: remaining})
}

func (p *Presence) enqueue(o op) {
	select {
	case <-p.stop:
		return
	default:
	}

	select {
	case p.ops <- o:
	default:
		p.log.Warn("presence.dropped", "room_id", o.roomID, "client_id", o.clientID)
	}
}

func (p *Presence) run() {
	defer close(p.done)
	for {
		select {
		case o := <-p.ops:
			p.apply(o)
		case <-p.stop:
			// Apply whatever was queued before shutdown.
			for {
				select {
				case o := <-p.ops:
					p.apply(o)
				default:
					return
				}
			}
		}
	}
}

func (p *Presence) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := roomKey(o.roomID)
	var err error
	switch o.kind {
	case opJoin:
		pipe := p.client.TxPipeline()
		pipe.HSet(ctx, key, o.clientID, o.role)
		pipe.Expire(ctx, key, p.ttl)
		_, err = pipe.Exec(ctx)
	case opLeave:
		if o.remaining == 0 {
			err = p.client.Del(ctx, key).Err()
		} else {
			err = p.client.HDel(ctx, key, o.clientID).Err()
		}
	}
	if err != nil {
		p.log.Warn("presence.apply", "room_id", o.roomID, "client_id", o.clientID, "err", err)
	}
}

// Close stops accepting updates, waits for queued ones to be applied and
// closes the Redis connection.
func (p *Presence) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stop)
		p.Start()
		<-p.done
		err = p.client.Close()
	})
	return err
}
