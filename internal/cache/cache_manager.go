package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheManager groups the per-concern cache helpers used by repositories.
type CacheManager struct {
	client *redis.Client

	Scan  *ScanCacheHelper
	User  *CacheHelper
	Stats *CacheHelper
}

// NewCacheManager creates a cache manager. A nil client is allowed and all
// operations degrade gracefully to direct execution.
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client: client,
		Scan:   &ScanCacheHelper{CacheHelper: NewCacheHelper(client, ScanCacheConfig.Prefix)},
		User:   NewCacheHelper(client, UserCacheConfig.Prefix),
		Stats:  NewCacheHelper(client, StatsCacheConfig.Prefix),
	}
}

// HealthCheck pings the cache backend.
func (m *CacheManager) HealthCheck(ctx context.Context) error {
	if m.client == nil {
		return ErrCacheNotAvailable
	}
	if _, err := m.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}

// ScanCacheHelper caches duplicate-scan pre-check answers keyed by
// (userID, scanDate). Only positive answers are authoritative; a cache miss
// or stale negative always falls through to the ledger.
type ScanCacheHelper struct {
	*CacheHelper
}

// DuplicateCheckEntry is the cached shape of a pre-check answer.
type DuplicateCheckEntry struct {
	AlreadyScanned bool      `json:"already_scanned"`
	FirstScanTime  time.Time `json:"first_scan_time"`
}

func duplicateCheckKey(userID, scanDate string) string {
	return fmt.Sprintf("dup:%s:%s", userID, scanDate)
}

// GetDuplicateCheck returns a cached pre-check answer, if any.
func (s *ScanCacheHelper) GetDuplicateCheck(ctx context.Context, userID, scanDate string) (*DuplicateCheckEntry, error) {
	var entry DuplicateCheckEntry
	if err := s.Get(ctx, duplicateCheckKey(userID, scanDate), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetDuplicateCheck caches a pre-check answer.
func (s *ScanCacheHelper) SetDuplicateCheck(ctx context.Context, userID, scanDate string, entry DuplicateCheckEntry) error {
	return s.Set(ctx, duplicateCheckKey(userID, scanDate), entry, ScanCacheConfig.TTL)
}

// InvalidateDuplicateCheck drops the cached answer after a ledger write.
func (s *ScanCacheHelper) InvalidateDuplicateCheck(ctx context.Context, userID, scanDate string) {
	_ = s.Delete(ctx, duplicateCheckKey(userID, scanDate))
}
