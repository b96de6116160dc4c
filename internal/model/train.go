package model

import (
    "math"
    "time"
)

// Station is a stop on the network, identified publicly by its code.
type Station struct {
    ID   string `json:"id"`
    Name string `json:"name"`
    Code string `json:"code"`
    City string `json:"city"`
}

// Route connects an origin and a destination station.
type Route struct {
    ID              string  `json:"id"`
    Name            string  `json:"name"`
    Origin          Station `json:"origin"`
    Destination     Station `json:"destination"`
    DistanceKM      float64 `json:"distance_km"`
    DurationMinutes int     `json:"duration_minutes"`
}

// Train is a scheduled service running a route every day.  Departure and
// arrival are wall clock times (HH:MM:SS).
type Train struct {
    ID            string    `json:"id"`
    Name          string    `json:"name"`
    Number        string    `json:"number"`
    Route         Route     `json:"route"`
    DepartureTime string    `json:"departure_time"`
    ArrivalTime   string    `json:"arrival_time"`
    IsActive      bool      `json:"is_active"`
    CreatedAt     time.Time `json:"-"`
}

// TrainClass is a coach type of a train with its own seats and tariff.
type TrainClass struct {
    ID         string  `json:"id"`
    TrainID    string  `json:"train_id"`
    ClassType  string  `json:"class_type"` // economy | first_class | business
    TotalSeats int     `json:"total_seats"`
    PricePerKM float64 `json:"price_per_km"`
    // DistanceKM is denormalised from the train's route when loaded.
    DistanceKM float64 `json:"distance_km"`
}

// Fare is the price of one seat for the whole route, rounded to whole
// shillings.
func (c TrainClass) Fare() int64 {
    return int64(math.Round(c.PricePerKM * c.DistanceKM))
}
