package internal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/server"
)

const eventBacklog = 256

// Publisher forwards session events to redis. It implements server.EventSink.
// The server calls it with its lock held, so events are queued and published
// from Run.
type Publisher struct {
	log        *slog.Logger
	rdb        *redis.Client
	instanceID string
	events     chan Event
}

func NewPublisher(logger *slog.Logger, rdb *redis.Client, instanceID string) *Publisher {
	return &Publisher{
		log:        logger,
		rdb:        rdb,
		instanceID: instanceID,
		events:     make(chan Event, eventBacklog),
	}
}

func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.events:
			b, err := json.Marshal(event)
			if err != nil {
				p.log.Error("failed to marshal event", err)
				continue
			}
			if err := p.rdb.Publish(ctx, eventsChannel, string(b)).Err(); err != nil {
				p.log.Error("failed to publish event", err, slog.String("event", string(event.Type)))
			}
		}
	}
}

func (p *Publisher) push(event Event) {
	event.Instance = p.instanceID
	event.Time = time.Now().Unix()
	select {
	case p.events <- event:
	default:
		p.log.Warn("event queue full, dropping event", slog.String("event", string(event.Type)))
	}
}

func (p *Publisher) UserJoined(u server.User) {
	p.push(Event{Type: EventTypeJoin, User: &u})
}

func (p *Publisher) UserLeft(u server.User) {
	p.push(Event{Type: EventTypeLeave, User: &u})
}

func (p *Publisher) SnapshotCreated(messages, bytes int) {
	p.push(Event{Type: EventTypeSnapshot, Messages: messages, Bytes: bytes})
}

// SubscribeControl applies operator actions published on the instance's
// control channel until ctx is cancelled.
func SubscribeControl(ctx context.Context, logger *slog.Logger, srv *server.Server, rdb *redis.Client, instanceID string) {
	sub := rdb.Subscribe(ctx, controlChannel(instanceID))
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			ctl := Control{}
			if err := json.Unmarshal([]byte(msg.Payload), &ctl); err != nil {
				logger.Error("failed to unmarshal control message", err)
				continue
			}

			if err := apply(srv, ctl); err != nil {
				logger.Warn("control message rejected",
					slog.String("control", string(ctl.Type)),
					slog.Int("user", int(ctl.User)),
					slog.String("reason", err.Error()))
				continue
			}
			logger.Info("applied control message", slog.String("control", string(ctl.Type)), slog.Int("user", int(ctl.User)))
		}
	}
}
