// Package otp keeps pending email verifications in Redis with a TTL.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
)

const keyPrefix = "otp:registration:"

// Store saves pending registrations keyed by an unguessable reference
type Store struct {
	rdb redis.Cmdable
}

// NewStore creates a store on top of a redis client
func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

// NewReference returns a fresh verification reference
func NewReference() string {
	return uuid.NewString()
}

// Save stores reg under ref for ttl. An existing reference is never overwritten.
func (s *Store) Save(ctx context.Context, ref string, reg models.PendingRegistration, ttl time.Duration) error {
	payload, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode pending registration: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, keyPrefix+ref, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store pending registration: %w", err)
	}
	if !ok {
		return apperrors.NewConflictError("verification reference already in use")
	}
	return nil
}

// Take removes and returns the entry for ref. A reference can be taken once.
func (s *Store) Take(ctx context.Context, ref string) (*models.PendingRegistration, error) {
	raw, err := s.rdb.GetDel(ctx, keyPrefix+ref).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pending registration: %w", err)
	}

	var reg models.PendingRegistration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("decode pending registration: %w", err)
	}
	return &reg, nil
}

// GenerateCode returns a random numeric code of the given length
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("code length must be positive")
	}
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

// CodesEqual compares two codes in constant time
func CodesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
