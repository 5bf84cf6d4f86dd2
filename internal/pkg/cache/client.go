package cache

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client é o contrato de cache usado pelos repositórios e pelo rate limiter.
// O cache é sempre opcional: os chamadores seguem para o banco em caso de erro.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// SetNX grava apenas se a chave não existir.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	// Hit conta um acesso na janela da chave, abrindo a janela no primeiro acesso.
	// Devolve o total da janela e quanto falta para ela expirar.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// ErrCacheMiss é retornado quando a chave não é encontrada no cache.
var ErrCacheMiss = redis.Nil

// hitScript incrementa e define a expiração de forma atômica na primeira batida.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisClient implementa Client sobre o go-redis.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient conecta ao Redis. Falha no PING apenas gera aviso.
func NewRedisClient(addr string) Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Aviso: Redis indisponível em %s: %v", addr, err)
	}

	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

func (c *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, expiration).Result()
}

func (c *RedisClient) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	vals, err := hitScript.Run(ctx, c.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return vals[0], ttl, nil
}
