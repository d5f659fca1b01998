package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"hostelmon/internal/complaint"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// maxSwapAttempts bounds retries when a watched record changes mid-update.
const maxSwapAttempts = 3

// Key layout:
//
//	<prefix>:<id>           JSON record
//	<prefix>:token:<token>  id
//	<prefix>s:by_created    sorted set of ids scored by creation time
const defaultKeyPrefix = "complaint"

// Redis stores complaints as JSON strings with a token index and a
// creation-ordered sorted set.
type Redis struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisClient builds a go-redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedis wraps client.
func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{client: client, prefix: defaultKeyPrefix, log: log}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// storedComplaint keeps the token in the persisted JSON, which the plain
// Complaint encoding omits.
type storedComplaint struct {
	complaint.Complaint
	ResolveToken string `json:"resolve_token"`
}

func (r *Redis) recordKey(id string) string { return r.prefix + ":" + id }
func (r *Redis) tokenKey(token string) string { return r.prefix + ":token:" + token }
func (r *Redis) createdKey() string { return r.prefix + "s:by_created" }

func encodeStored(c complaint.Complaint) ([]byte, error) {
	return json.Marshal(storedComplaint{Complaint: c, ResolveToken: c.ResolveToken})
}

func decodeStored(data []byte) (complaint.Complaint, error) {
	var s storedComplaint
	if err := json.Unmarshal(data, &s); err != nil {
		return complaint.Complaint{}, err
	}
	c := s.Complaint
	c.ResolveToken = s.ResolveToken
	return c, nil
}

func (r *Redis) Insert(ctx context.Context, c complaint.Complaint) (complaint.Complaint, error) {
	data, err := encodeStored(c)
	if err != nil {
		return complaint.Complaint{}, fmt.Errorf("encode complaint: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.recordKey(c.ID), data, 0).Result()
	if err != nil {
		return complaint.Complaint{}, fmt.Errorf("insert complaint: %w", err)
	}
	if !ok {
		return complaint.Complaint{}, ErrDuplicate
	}

	ok, err = r.client.SetNX(ctx, r.tokenKey(c.ResolveToken), c.ID, 0).Result()
	if err != nil || !ok {
		r.client.Del(ctx, r.recordKey(c.ID))
		if err != nil {
			return complaint.Complaint{}, fmt.Errorf("index complaint token: %w", err)
		}
		return complaint.Complaint{}, ErrDuplicate
	}

	score := float64(c.CreatedAt.UnixMicro())
	if err := r.client.ZAdd(ctx, r.createdKey(), &redis.Z{Score: score, Member: c.ID}).Err(); err != nil {
		r.client.Del(ctx, r.recordKey(c.ID), r.tokenKey(c.ResolveToken))
		return complaint.Complaint{}, fmt.Errorf("index complaint: %w", err)
	}
	return c, nil
}

// UpdateWhere watches the record key; a concurrent write aborts the MULTI
// and the status check runs again.
func (r *Redis) UpdateWhere(ctx context.Context, field complaint.Field, value string, from complaint.Status, patch complaint.Patch) (complaint.Complaint, error) {
	id, err := r.resolveID(ctx, field, value)
	if err != nil {
		return complaint.Complaint{}, err
	}
	if id == "" {
		return complaint.Complaint{}, complaint.ErrNoMatch
	}
	key := r.recordKey(id)

	var updated complaint.Complaint
	swap := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if stderrors.Is(err, redis.Nil) {
			return complaint.ErrNoMatch
		}
		if err != nil {
			return err
		}
		c, err := decodeStored(data)
		if err != nil {
			return fmt.Errorf("decode complaint: %w", err)
		}
		if c.Status != from {
			return complaint.ErrNoMatch
		}

		applyPatch(&c, patch)
		encoded, err := encodeStored(c)
		if err != nil {
			return fmt.Errorf("encode complaint: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err == nil {
			updated = c
		}
		return err
	}

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		err = r.client.Watch(ctx, swap, key)
		if stderrors.Is(err, redis.TxFailedErr) {
			r.log.Debug("Complaint changed during update, retrying", zap.String("id", id))
			continue
		}
		if err != nil {
			if stderrors.Is(err, complaint.ErrNoMatch) {
				return complaint.Complaint{}, err
			}
			return complaint.Complaint{}, fmt.Errorf("update complaint: %w", err)
		}
		return updated, nil
	}
	return complaint.Complaint{}, complaint.ErrNoMatch
}

func (r *Redis) FindOne(ctx context.Context, field complaint.Field, value string) (*complaint.Complaint, error) {
	switch field {
	case complaint.FieldID, complaint.FieldResolveToken:
		id, err := r.resolveID(ctx, field, value)
		if err != nil || id == "" {
			return nil, err
		}
		return r.get(ctx, id)
	}

	all, err := r.FindAll(ctx, complaint.FieldCreatedAt, false)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if fieldValue(all[i], field) == value {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (r *Redis) FindAll(ctx context.Context, orderBy complaint.Field, desc bool) ([]complaint.Complaint, error) {
	ids, err := r.client.ZRange(ctx, r.createdKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list complaint ids: %w", err)
	}
	if len(ids) == 0 {
		return []complaint.Complaint{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load complaints: %w", err)
	}

	all := make([]complaint.Complaint, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			r.log.Warn("Indexed complaint is missing", zap.String("id", ids[i]))
			continue
		}
		c, err := decodeStored([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("decode complaint %s: %w", ids[i], err)
		}
		all = append(all, c)
	}

	sortComplaints(all, orderBy, desc)
	return all, nil
}

func (r *Redis) resolveID(ctx context.Context, field complaint.Field, value string) (string, error) {
	switch field {
	case complaint.FieldID:
		return value, nil
	case complaint.FieldResolveToken:
		id, err := r.client.Get(ctx, r.tokenKey(value)).Result()
		if stderrors.Is(err, redis.Nil) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("lookup token: %w", err)
		}
		return id, nil
	}

	c, err := r.FindOne(ctx, field, value)
	if err != nil || c == nil {
		return "", err
	}
	return c.ID, nil
}

func (r *Redis) get(ctx context.Context, id string) (*complaint.Complaint, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	c, err := decodeStored(data)
	if err != nil {
		return nil, fmt.Errorf("decode complaint: %w", err)
	}
	return &c, nil
}
