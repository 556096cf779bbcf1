package internal

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"

	"manualpilot/drawsrv/internal/server"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not available at %v: %v", redisAddr, err)
	}

	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// hostedServer returns a server with a session hosted by user 1 over a pipe.
func hostedServer(t *testing.T, ctx context.Context) *server.Server {
	t.Helper()
	srv := server.New(testLogger(), server.Config{})

	local, remote := net.Pipe()
	t.Cleanup(func() { _ = local.Close() })
	go srv.ServeConn(ctx, remote)

	client := newTestClient(t, local)
	client.host("alice")

	// keep draining so the server never blocks on the pipe
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := local.Read(buf); err != nil {
				return
			}
		}
	}()
	return srv
}

func TestPublisher(t *testing.T) {
	rdb := testRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, eventsChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	instanceID := ksuid.New().String()
	p := NewPublisher(testLogger(), rdb, instanceID)
	go p.Run(ctx)

	p.UserJoined(server.User{ID: 3, Name: "carol"})
	p.SnapshotCreated(10, 2048)

	var got []Event
	for len(got) < 2 {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			t.Fatal(err)
		}

		event := Event{}
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatal(err)
		}
		// other instances may share the channel
		if event.Instance == instanceID {
			got = append(got, event)
		}
	}

	if got[0].Type != EventTypeJoin || got[0].User == nil || got[0].User.Name != "carol" {
		t.Errorf("join event %+v", got[0])
	}
	if got[1].Type != EventTypeSnapshot || got[1].Messages != 10 || got[1].Bytes != 2048 {
		t.Errorf("snapshot event %+v", got[1])
	}
}

func TestSubscribeControl(t *testing.T) {
	rdb := testRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := hostedServer(t, ctx)
	instanceID := ksuid.New().String()
	go SubscribeControl(ctx, testLogger(), srv, rdb, instanceID)

	b, err := json.Marshal(Control{Type: ControlLock, User: 1})
	if err != nil {
		t.Fatal(err)
	}

	// the subscription is set up asynchronously, so keep publishing until it lands
	for {
		if users := srv.Users(); len(users) == 1 && users[0].Locked {
			break
		}
		if err := rdb.Publish(ctx, controlChannel(instanceID), string(b)).Err(); err != nil {
			t.Fatal(err)
		}
		select {
		case <-ctx.Done():
			t.Fatal("control message not applied")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestAnnouncer(t *testing.T) {
	rdb := testRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := hostedServer(t, ctx)
	instanceID := ksuid.New().String()

	runCtx, stop := context.WithCancel(ctx)
	a := NewAnnouncer(testLogger(), rdb, srv, instanceID, "draw.example.com:27750", 2*time.Second)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	key := listingKey(instanceID)
	for {
		res, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			t.Fatal(err)
		}
		if res["started"] == "true" {
			if res["users"] != "1" || res["addr"] != "draw.example.com:27750" {
				t.Errorf("listing %v", res)
			}
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("session never listed")
		case <-time.After(20 * time.Millisecond):
		}
	}

	other := NewAnnouncer(testLogger(), rdb, srv, instanceID, "elsewhere:1", 2*time.Second)
	if err := other.Run(ctx); err == nil {
		t.Error("second announcer for the same instance started")
	}

	stop()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n, err := rdb.Exists(ctx, key).Result(); err != nil || n != 0 {
		t.Errorf("listing not removed: %v %v", n, err)
	}
}
