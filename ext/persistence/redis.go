package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v7"

	"gitlab.com/yelinaung/tgbot/ext"
)

var _ ext.Persistence = (*Redis)(nil)

// DefaultRedisPrefix is prepended to every key written by Redis.
const DefaultRedisPrefix = "tgbot:"

// Redis stores data as JSON values under a key prefix:
//
//	<prefix>user_data            hash of user id to JSON object
//	<prefix>chat_data            hash of chat id to JSON object
//	<prefix>bot_data             JSON object
//	<prefix>callback_data        JSON snapshot of the callback data cache
//	<prefix>conversations:<name> hash of conversation key to state
type Redis struct {
	base
	client *redis.Client
	prefix string
}

// NewRedis returns a Redis persistence using client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedis(client *redis.Client, prefix string, opts ...Option) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{base: newBase("persistence.redis", opts), client: client, prefix: prefix}
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (r *Redis) c(ctx context.Context) *redis.Client { return r.client.WithContext(ctx) }

func (r *Redis) loadHash(ctx context.Context, key string) (map[int64]map[string]any, error) {
	fields, err := r.c(ctx).HGetAll(key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read %s: %w", key, err)
	}
	out := make(map[int64]map[string]any, len(fields))
	for field, raw := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			r.log.Warn().Str("key", key).Str("field", field).Msg("Skipping non-numeric id")
			continue
		}
		data, err := decodeObject([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("redis: %s[%d]: %w", key, id, err)
		}
		out[id] = data
	}
	return out, nil
}

func (r *Redis) loadString(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.c(ctx).Get(key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: read %s: %w", key, err)
	}
	return raw, nil
}

func (r *Redis) GetUserData(ctx context.Context) (map[int64]map[string]any, error) {
	return r.loadHash(ctx, r.key("user_data"))
}

func (r *Redis) GetChatData(ctx context.Context) (map[int64]map[string]any, error) {
	return r.loadHash(ctx, r.key("chat_data"))
}

func (r *Redis) GetBotData(ctx context.Context) (map[string]any, error) {
	raw, err := r.loadString(ctx, r.key("bot_data"))
	if err != nil {
		return nil, err
	}
	return decodeObject(raw)
}

func (r *Redis) GetCallbackData(ctx context.Context) (*ext.CallbackDataSnapshot, error) {
	raw, err := r.loadString(ctx, r.key("callback_data"))
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (r *Redis) GetConversations(ctx context.Context, name string) (map[string]string, error) {
	key := r.key("conversations", name)
	states, err := r.c(ctx).HGetAll(key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read %s: %w", key, err)
	}
	return states, nil
}

func (r *Redis) setField(ctx context.Context, key string, id int64, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := r.c(ctx).HSet(key, strconv.FormatInt(id, 10), raw).Err(); err != nil {
		return fmt.Errorf("redis: write %s: %w", key, err)
	}
	return nil
}

func (r *Redis) setString(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := r.c(ctx).Set(key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: write %s: %w", key, err)
	}
	return nil
}

func (r *Redis) UpdateUserData(ctx context.Context, userID int64, data map[string]any) error {
	return r.setField(ctx, r.key("user_data"), userID, data)
}

func (r *Redis) UpdateChatData(ctx context.Context, chatID int64, data map[string]any) error {
	return r.setField(ctx, r.key("chat_data"), chatID, data)
}

func (r *Redis) UpdateBotData(ctx context.Context, data map[string]any) error {
	return r.setString(ctx, r.key("bot_data"), data)
}

func (r *Redis) UpdateCallbackData(ctx context.Context, data *ext.CallbackDataSnapshot) error {
	if data == nil {
		return r.c(ctx).Del(r.key("callback_data")).Err()
	}
	return r.setString(ctx, r.key("callback_data"), data)
}

func (r *Redis) UpdateConversation(ctx context.Context, name, key, state string) error {
	hash := r.key("conversations", name)
	var err error
	if state == "" {
		err = r.c(ctx).HDel(hash, key).Err()
	} else {
		err = r.c(ctx).HSet(hash, key, state).Err()
	}
	if err != nil {
		return fmt.Errorf("redis: write %s: %w", hash, err)
	}
	return nil
}

func (r *Redis) DropUserData(ctx context.Context, userID int64) error {
	return r.c(ctx).HDel(r.key("user_data"), strconv.FormatInt(userID, 10)).Err()
}

func (r *Redis) DropChatData(ctx context.Context, chatID int64) error {
	return r.c(ctx).HDel(r.key("chat_data"), strconv.FormatInt(chatID, 10)).Err()
}

// Flush does nothing; updates are written as they happen.
func (r *Redis) Flush(context.Context) error { return nil }
