// Package kvstore exposes read-only Redis commands as a telq operation.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/telq/pkg/telq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultName is the operation name registered when Options.Name is empty.
const DefaultName = "dbRedis"

// Supported commands.
const (
	CommandGet     = "get"
	CommandMGet    = "mget"
	CommandHGetAll = "hgetall"
	CommandExists  = "exists"
	CommandTTL     = "ttl"
)

var (
	// ErrNoClient is returned when no Redis client is configured.
	ErrNoClient = errors.New("no client")

	// ErrCommand wraps failures reported by Redis.
	ErrCommand = errors.New("Error with redis command")

	// ErrUnsupportedCommand is returned for commands outside the supported set.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// Request is the argument of the kvstore operation.
type Request struct {
	// Command is one of get, mget, hgetall, exists, ttl (default get)
	Command string

	Key  string
	Keys []string

	// Client overrides the plugin's client.
	Client redis.Cmdable
}

// keys returns Keys, or Key when Keys is empty.
func (r Request) keys() []string {
	if len(r.Keys) > 0 {
		return r.Keys
	}
	if r.Key != "" {
		return []string{r.Key}
	}
	return nil
}

// Options configures the plugin.
type Options struct {
	// Name of the registered operation (default "dbRedis")
	Name string

	// Client serves requests that carry none
	Client redis.Cmdable
}

// Exec runs req against req.Client.
//
// Results: get returns the string value or nil for a missing key; mget
// returns []any with nil for missing keys; hgetall returns
// map[string]string; exists returns the number of existing keys (int64);
// ttl returns the remaining time.Duration (negative when the key has no
// expiry or does not exist).
func Exec(ctx context.Context, req Request) (any, error) {
	if req.Client == nil {
		return nil, ErrNoClient
	}

	command := strings.ToLower(req.Command)
	if command == "" {
		command = CommandGet
	}

	keys := req.keys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s requires a key", telq.ErrInvalidArgs, command)
	}

	var (
		result any
		err    error
	)

	switch command {
	case CommandGet:
		result, err = req.Client.Get(ctx, keys[0]).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
	case CommandMGet:
		result, err = req.Client.MGet(ctx, keys...).Result()
	case CommandHGetAll:
		result, err = req.Client.HGetAll(ctx, keys[0]).Result()
	case CommandExists:
		result, err = req.Client.Exists(ctx, keys...).Result()
	case CommandTTL:
		result, err = req.Client.TTL(ctx, keys[0]).Result()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, req.Command)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommand, err)
	}
	return result, nil
}

// Plugin registers the kvstore operation on c. opts may be nil, Options
// or *Options.
func Plugin(c *telq.Client, opts any) error {
	var o Options
	switch v := opts.(type) {
	case nil:
	case Options:
		o = v
	case *Options:
		if v != nil {
			o = *v
		}
	default:
		return fmt.Errorf("kvstore: unexpected plugin options %T", opts)
	}

	if o.Name == "" {
		o.Name = DefaultName
	}

	logger := c.Logger().With().Str("plugin", "kvstore").Str("operation", o.Name).Logger()
	return c.Register(o.Name, operation(o.Client, logger))
}

func operation(client redis.Cmdable, logger zerolog.Logger) telq.Operation {
	return func(ctx context.Context, args any) (any, error) {
		var req Request
		switch v := args.(type) {
		case Request:
			req = v
		case *Request:
			if v != nil {
				req = *v
			}
		case string:
			req = Request{Key: v}
		default:
			return nil, fmt.Errorf("%w: want kvstore.Request, got %T", telq.ErrInvalidArgs, args)
		}

		if req.Client == nil {
			req.Client = client
		}

		logger.Debug().Str("command", req.Command).Strs("keys", req.keys()).Msg("Executing redis command")
		return Exec(ctx, req)
	}
}
