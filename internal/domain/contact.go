package domain

import "time"

// Contact is a mailable recipient with optional personalization fields.
// The dispatch core only reads contacts; ownership stays with the
// contact store.
type Contact struct {
	ID         string    `json:"id"`
	ListID     string    `json:"listId,omitempty"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	Company    string    `json:"company,omitempty"`
	Subscribed bool      `json:"subscribed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// List is a named set of contacts.
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
