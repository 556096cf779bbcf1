package internal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/internal/server"
)

// Announcer keeps a listing of the session in redis for as long as it runs.
// The listing expires on its own if the process dies.
type Announcer struct {
	log        *slog.Logger
	rdb        *redis.Client
	locker     *redislock.Client
	srv        *server.Server
	instanceID string
	address    string
	ttl        time.Duration
}

func NewAnnouncer(logger *slog.Logger, rdb *redis.Client, srv *server.Server, instanceID, address string, ttl time.Duration) *Announcer {
	return &Announcer{
		log:        logger,
		rdb:        rdb,
		locker:     redislock.New(rdb),
		srv:        srv,
		instanceID: instanceID,
		address:    address,
		ttl:        ttl,
	}
}

// Run refreshes the listing every half ttl. It fails if another process
// holds the listing for the same instance id.
func (a *Announcer) Run(ctx context.Context) error {
	lock, err := a.locker.Obtain(ctx, fmt.Sprintf("drawsrv:lock:%v", a.instanceID), a.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("instance %v is already announced", a.instanceID)
	} else if err != nil {
		return err
	}

	key := listingKey(a.instanceID)
	defer func() {
		if err := a.rdb.Del(context.Background(), key).Err(); err != nil {
			a.log.Error("failed to remove listing", err)
		}
		_ = lock.Release(context.Background())
	}()

	ticker := time.NewTicker(a.ttl / 2)
	defer ticker.Stop()

	for {
		if err := a.announce(ctx, key); err != nil {
			a.log.Error("failed to update listing", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := lock.Refresh(ctx, a.ttl, nil); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("lost listing lock: %w", err)
		}
	}
}

func (a *Announcer) announce(ctx context.Context, key string) error {
	st := a.srv.Status()
	data := map[string]any{
		"inst":    a.instanceID,
		"addr":    a.address,
		"title":   st.Title,
		"users":   strconv.Itoa(len(st.Users)),
		"started": strconv.FormatBool(st.Started),
		"locked":  strconv.FormatBool(st.Locked),
		"closed":  strconv.FormatBool(st.Closed),
		"seen":    strconv.Itoa(int(time.Now().Unix())),
	}

	if err := a.rdb.HSet(ctx, key, data).Err(); err != nil {
		return err
	}
	return a.rdb.Expire(ctx, key, a.ttl).Err()
}
