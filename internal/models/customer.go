package models

import "time"

type Customer struct {
	CustomerID      string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Phone           string    `json:"phone"`
	PhoneNormalized string    `json:"phone_normalized"`
	Email           *string   `json:"email,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
