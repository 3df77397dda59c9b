package otc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersion1 = 1

// expiryGrace keeps an expired record around briefly so that a late guess
// reads as expired rather than never-issued.
const expiryGrace = time.Minute

// RedisStore is a Store backed by a shared Redis deployment. Consume runs
// under an optimistic WATCH transaction so concurrent guesses against the
// same challenge cannot double-spend the attempt budget.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "otc"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

// principalKey points at the principal's one pending challenge, so Save
// can drop the prior challenge on reissue.
func (s *RedisStore) principalKey(principalID string) string {
	return s.prefix + ":p:" + principalID
}

func (s *RedisStore) Save(ctx context.Context, challengeID string, record *Record, ttl time.Duration) error {
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}

	prior, err := s.redis.Get(ctx, s.principalKey(record.PrincipalID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if prior != "" && prior != challengeID {
		if err := s.redis.Del(ctx, s.key(prior)).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	keyTTL := ttl + expiryGrace
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, keyTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.redis.Set(ctx, s.principalKey(record.PrincipalID), challengeID, keyTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, challengeID, code string, maxAttempts int) (*Record, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var consumed *Record
		var verdict error

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeRecord(data)
			if err != nil {
				return err
			}
			pointer := s.principalKey(record.PrincipalID)
			if time.Now().Unix() > record.ExpiresAt {
				verdict = ErrExpired
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key, pointer)
					return nil
				})
				return err
			}

			if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) == 1 {
				consumed = record
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key, pointer)
					return nil
				})
				return err
			}

			record.Attempts++
			verdict = ErrMismatch
			if int(record.Attempts) >= maxAttempts {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key, pointer)
					return nil
				})
				return err
			}

			updated, err := encodeRecord(record)
			if err != nil {
				return err
			}
			ttl := time.Until(time.Unix(record.ExpiresAt, 0)) + expiryGrace
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if verdict != nil {
			return nil, verdict
		}
		return consumed, nil
	}

	return nil, ErrNotFound
}

func (s *RedisStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

func encodeRecord(record *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.PrincipalID) > 65535 || len(record.Code) > 65535 {
		return nil, errors.New("challenge field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.PrincipalID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.PrincipalID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Code))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Code)

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &Record{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var principalLen uint16
	if err := binary.Read(reader, binary.BigEndian, &principalLen); err != nil {
		return nil, err
	}
	principal := make([]byte, principalLen)
	if _, err := io.ReadFull(reader, principal); err != nil {
		return nil, err
	}
	record.PrincipalID = string(principal)

	var codeLen uint16
	if err := binary.Read(reader, binary.BigEndian, &codeLen); err != nil {
		return nil, err
	}
	codeBytes := make([]byte, codeLen)
	if _, err := io.ReadFull(reader, codeBytes); err != nil {
		return nil, err
	}
	record.Code = string(codeBytes)

	return record, nil
}
