package impl

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/caddyserver/certmagic"
	"github.com/libdns/porkbun"
	"github.com/redis/go-redis/v9"
)

const certPrefix = "drawsrv:tls:"

// storage keeps certmagic's certificates and locks in redis so every instance
// behind the same domain shares them.
type storage struct {
	rdb    *redis.Client
	locker *redislock.Client
	prefix string
	locks  sync.Map
}

func newStorage(rdb *redis.Client, prefix string) *storage {
	return &storage{
		rdb:    rdb,
		locker: redislock.New(rdb),
		prefix: prefix,
	}
}

func (s *storage) key(name string) string {
	return s.prefix + name
}

func (s *storage) Lock(ctx context.Context, name string) error {
	opts := &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(time.Second),
	}

	lock, err := s.locker.Obtain(ctx, s.key("lock:"+name), time.Minute, opts)
	if err != nil {
		return err
	}

	s.locks.Store(name, lock)
	return nil
}

func (s *storage) Unlock(ctx context.Context, name string) error {
	lock, ok := s.locks.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("not holding lock %v", name)
	}

	return lock.(*redislock.Lock).Release(ctx)
}

func (s *storage) Store(ctx context.Context, key string, value []byte) error {
	return s.rdb.HSet(ctx, s.key(key), map[string]any{
		"modified": time.Now().Unix(),
		"data":     base64.RawURLEncoding.EncodeToString(value),
		"size":     len(value),
	}).Err()
}

func (s *storage) Load(ctx context.Context, key string) ([]byte, error) {
	res, err := s.rdb.HGet(ctx, s.key(key), "data").Result()
	if err == redis.Nil {
		return nil, fs.ErrNotExist
	} else if err != nil {
		return nil, err
	}

	return base64.RawURLEncoding.DecodeString(res)
}

func (s *storage) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

func (s *storage) Exists(ctx context.Context, key string) bool {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	return err == nil && n > 0
}

func (s *storage) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	pattern := s.key(prefix)
	if recursive {
		pattern += "*"
	}

	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = k[len(s.prefix):]
	}
	return keys, nil
}

func (s *storage) Stat(ctx context.Context, key string) (certmagic.KeyInfo, error) {
	info := certmagic.KeyInfo{}

	res, err := s.rdb.HMGet(ctx, s.key(key), "modified", "size").Result()
	if err != nil {
		return info, err
	}
	if res[0] == nil || res[1] == nil {
		return info, fs.ErrNotExist
	}

	modified, err := strconv.ParseInt(res[0].(string), 10, 64)
	if err != nil {
		return info, err
	}

	size, err := strconv.ParseInt(res[1].(string), 10, 64)
	if err != nil {
		return info, err
	}

	info.Key = key
	info.Modified = time.Unix(modified, 0)
	info.Size = size
	info.IsTerminal = true

	return info, nil
}

// TLSConfig obtains a certificate for domain through an ACME DNS challenge
// answered with porkbun. Certificates are kept in redis.
func TLSConfig(domain, apiKey, apiSecret string, rdb *redis.Client) (*tls.Config, error) {
	certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
		DNSProvider: &porkbun.Provider{
			APIKey:       apiKey,
			APISecretKey: apiSecret,
		},
	}

	certmagic.Default.Storage = newStorage(rdb, certPrefix)

	return certmagic.TLS([]string{domain})
}
