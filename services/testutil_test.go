package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/murali-mp/raastaa-backend/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// a single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Vendor{},
		&models.Expedition{},
		&models.ExpeditionParticipant{},
		&models.ExpeditionVendor{},
		&models.BottleCapTransaction{},
		&models.Notification{},
		&models.AuditLog{},
	))
	return db
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username:      username,
		DisplayName:   username,
		Email:         fmt.Sprintf("%s@example.com", username),
		AccountStatus: "ACTIVE",
		Role:          "user",
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createVendor(t *testing.T, db *gorm.DB, name string) *models.Vendor {
	t.Helper()
	vendor := models.Vendor{StoreName: name, PriceRange: "BUDGET"}
	require.NoError(t, db.Create(&vendor).Error)
	return &vendor
}

func newExpeditionService(t *testing.T, db *gorm.DB) *ExpeditionService {
	t.Helper()
	return &ExpeditionService{
		db:       db,
		notifier: NewNotificationService(db),
		now:      time.Now,
	}
}

func newLedgerService(t *testing.T, db *gorm.DB, rdb *redis.Client) *LedgerService {
	t.Helper()
	return &LedgerService{db: db, redis: rdb, now: time.Now}
}
