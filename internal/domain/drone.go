package domain

import "time"

// Drone category constants.
const (
	CategoryCamera      = "camera"
	CategoryHandheld    = "handheld"
	CategoryPower       = "power"
	CategorySpecialized = "specialized"
)

// Drone represents a catalog product.
type Drone struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	Model         string     `json:"model"`
	Category      string     `json:"category"`
	Description   string     `json:"description,omitempty"`
	PriceCents    int64      `json:"priceCents"`
	Currency      string     `json:"currency"`
	StockQuantity int        `json:"stockQuantity"`
	InStock       bool       `json:"inStock"`
	Featured      bool       `json:"featured"`
	Specs         DroneSpecs `json:"specs"`
	Images        []string   `json:"images,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// DroneSpecs holds the flight characteristics shown on product pages.
type DroneSpecs struct {
	FlightTimeMinutes    int     `json:"flightTimeMinutes"`
	RangeKM              float64 `json:"rangeKm"`
	MaxSpeedKMH          float64 `json:"maxSpeedKmh"`
	WeightGrams          int     `json:"weightGrams"`
	CameraResolution     string  `json:"cameraResolution,omitempty"`
	HasObstacleAvoidance bool    `json:"hasObstacleAvoidance"`
}

// ValidCategories returns all valid drone categories.
func ValidCategories() []string {
	return []string{CategoryCamera, CategoryHandheld, CategoryPower, CategorySpecialized}
}

// IsValidCategory checks if a category string is valid.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories() {
		if c == category {
			return true
		}
	}
	return false
}
