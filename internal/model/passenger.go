package model

import "time"

// Passenger holds the identity and contact details of a traveller.  A
// passenger belongs to the user account that registered it and can be
// reused across bookings.
type Passenger struct {
    ID        string    `json:"id"`
    UserID    string    `json:"user_id"`
    FullName  string    `json:"full_name"`
    IDNumber  string    `json:"id_number"`
    Phone     string    `json:"phone"`
    Email     *string   `json:"email,omitempty"`
    CreatedAt time.Time `json:"created_at"`
}
