package main

import (
	"fmt"
	"log"

	"github.com/murali-mp/raastaa-backend/models"
	"github.com/murali-mp/raastaa-backend/storage"

	"gorm.io/datatypes"
)

// Seeds a handful of stalls for local development.
func main() {
	db := storage.InitializeDB()

	vendors := []models.Vendor{
		{
			StoreName:      "Sharma Chaat Bhandar",
			Description:    "Third-generation chaat stall near the clock tower.",
			FoodCategories: datatypes.JSON([]byte(`["chaat","snacks"]`)),
			PriceRange:     "BUDGET",
			Latitude:       28.6562,
			Longitude:      77.2410,
		},
		{
			StoreName:      "Momo Junction",
			Description:    "Steamed and fried momos, evening only.",
			FoodCategories: datatypes.JSON([]byte(`["momos","tibetan"]`)),
			PriceRange:     "BUDGET",
			Latitude:       28.6129,
			Longitude:      77.2295,
		},
		{
			StoreName:      "Kulfi House",
			Description:    "Hand-churned kulfi in seasonal flavours.",
			FoodCategories: datatypes.JSON([]byte(`["desserts","kulfi"]`)),
			PriceRange:     "MODERATE",
			Latitude:       28.6304,
			Longitude:      77.2177,
		},
	}

	for i := range vendors {
		result := db.Where("store_name = ?", vendors[i].StoreName).FirstOrCreate(&vendors[i])
		if result.Error != nil {
			log.Fatalf("Error seeding vendor %q: %v", vendors[i].StoreName, result.Error)
		}
	}

	fmt.Println("Vendor seeding completed successfully!")
}
