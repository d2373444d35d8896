package models

import (
	"time"

	"gorm.io/datatypes"
)

type Vendor struct {
	ID      uint `json:"id" gorm:"primaryKey"`
	OwnerID uint `json:"ownerID" gorm:"index"`

	StoreName   string `json:"storeName" gorm:"not null;size:100"`
	Description string `json:"description" gorm:"size:1000"`

	StallPhotos    datatypes.JSON `json:"stallPhotos" gorm:"type:jsonb"`
	FoodCategories datatypes.JSON `json:"foodCategories" gorm:"type:jsonb"`

	PriceRange    string  `json:"priceRange" gorm:"size:16"` // BUDGET, MODERATE, PREMIUM
	RatingOverall float64 `json:"ratingOverall"`
	TotalRatings  int     `json:"totalRatings"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Live presence is tracked in Redis with a TTL; LastPingAt is the last
	// persisted heartbeat for dashboards.
	LastPingAt *time.Time `json:"lastPingAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VendorSummary is the projection embedded in expedition stop payloads.
type VendorSummary struct {
	ID             uint           `json:"id"`
	StoreName      string         `json:"storeName"`
	StallPhotos    datatypes.JSON `json:"stallPhotos"`
	FoodCategories datatypes.JSON `json:"foodCategories"`
	RatingOverall  float64        `json:"ratingOverall"`
}

func (v *Vendor) Summary() VendorSummary {
	return VendorSummary{
		ID:             v.ID,
		StoreName:      v.StoreName,
		StallPhotos:    v.StallPhotos,
		FoodCategories: v.FoodCategories,
		RatingOverall:  v.RatingOverall,
	}
}
