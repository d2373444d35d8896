package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/murali-mp/raastaa-backend/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// VendorPresenceService tracks which stalls are live right now. Heartbeats
// land in a Redis sorted set scored by expiry time, so a vendor that stops
// pinging drops off the live list within the hour without any sweeper job.
type VendorPresenceService struct {
	db    *gorm.DB
	redis *redis.Client
	now   func() time.Time
}

func NewVendorPresenceService(db *gorm.DB, rdb *redis.Client) *VendorPresenceService {
	return &VendorPresenceService{db: db, redis: rdb, now: time.Now}
}

// Ping records a heartbeat for the vendor. The caller must own the stall.
func (s *VendorPresenceService) Ping(ctx context.Context, ownerID, vendorID uint) error {
	var vendor models.Vendor
	if err := s.db.First(&vendor, vendorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("%w: vendor %d", ErrNotFound, vendorID)
		}
		return err
	}
	if vendor.OwnerID != ownerID {
		return fmt.Errorf("%w: you do not own this stall", ErrForbidden)
	}

	now := s.now()
	expiry := now.Add(vendorLiveTTL)
	if err := s.redis.ZAdd(ctx, vendorLiveKey, &redis.Z{
		Score:  float64(expiry.Unix()),
		Member: strconv.FormatUint(uint64(vendorID), 10),
	}).Err(); err != nil {
		return err
	}

	return s.db.Model(&models.Vendor{}).
		Where("id = ?", vendorID).
		Update("last_ping_at", now).Error
}

// LiveVendors returns the vendors with an unexpired heartbeat. Expired
// members are pruned on the way through.
func (s *VendorPresenceService) LiveVendors(ctx context.Context) ([]models.VendorSummary, error) {
	nowUnix := s.now().Unix()

	s.redis.ZRemRangeByScore(ctx, vendorLiveKey, "-inf", strconv.FormatInt(nowUnix, 10))

	members, err := s.redis.ZRangeByScore(ctx, vendorLiveKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(nowUnix, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []models.VendorSummary{}, nil
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}

	var vendors []models.Vendor
	if err := s.db.Where("id IN ?", ids).Find(&vendors).Error; err != nil {
		return nil, err
	}

	summaries := make([]models.VendorSummary, 0, len(vendors))
	for i := range vendors {
		summaries = append(summaries, vendors[i].Summary())
	}
	return summaries, nil
}
