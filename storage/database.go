package storage

import (
	"log"
	"os"

	"github.com/murali-mp/raastaa-backend/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func connectToDB() *gorm.DB {
	// Only load .env in development (when RENDER env var is not set)
	if os.Getenv("RENDER") == "" {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Could not load .env file (this is normal in production)")
		}
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Panic("DB_CONNECTION_STRING environment variable is required")
	}

	db, dbError := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if dbError != nil {
		log.Panic("error connection to db: " + dbError.Error())
	}

	return db
}

func performMigrations(db *gorm.DB) {
	db.AutoMigrate(
		&models.User{},
		&models.Vendor{},
		&models.Expedition{},
		&models.ExpeditionParticipant{},
		&models.ExpeditionVendor{},
		&models.BottleCapTransaction{},
		&models.Notification{},
		&models.AuditLog{},
	)
}

// InitializeDB connects and migrates, returning the handle. The caller owns
// the handle for the process lifetime and injects it into the services.
func InitializeDB() *gorm.DB {
	db := connectToDB()
	performMigrations(db)
	return db
}
