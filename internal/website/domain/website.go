package domain

import (
	"errors"
	"net/url"
	"time"
)

// Website belongs to exactly one organization.
type Website struct {
	ID             string
	OrganizationID string
	Name           string
	URL            string
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// Validate validates the website for persistence. Returns an error describing the first validation failure.
func (w *Website) Validate() error {
	if w.OrganizationID == "" {
		return errors.New("organization is required")
	}
	if w.Name == "" {
		return errors.New("name is required")
	}
	if len(w.Name) > 64 {
		return errors.New("name must be at most 64 characters")
	}
	u, err := url.Parse(w.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("url must be absolute")
	}
	return nil
}
