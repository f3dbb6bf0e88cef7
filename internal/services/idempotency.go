package services

import (
	"context"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/repository"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService handles idempotency checks.
type IdempotencyService struct {
	redisRepo *repository.RedisRepository
	ttl       time.Duration
}

// NewIdempotencyService creates a new IdempotencyService. Without a Redis
// client no request is ever reported as a duplicate.
func NewIdempotencyService(redisRepo *repository.RedisRepository, ttl time.Duration) *IdempotencyService {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyService{redisRepo: redisRepo, ttl: ttl}
}

// IsDuplicate claims requestID and reports whether it was claimed before.
func (s *IdempotencyService) IsDuplicate(ctx context.Context, requestID string) (bool, error) {
	claimed, err := s.redisRepo.Claim(ctx, "idempotency:push:"+requestID, s.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}
