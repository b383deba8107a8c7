package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"time"
)

// Organization is a tenant. It owns websites and has members.
type Organization struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// IsDeleted reports whether the organization has been soft-deleted.
func (o *Organization) IsDeleted() bool {
	return o.DeletedAt != nil
}

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Organization) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if len(o.Name) > 64 {
		return errors.New("name must be at most 64 characters")
	}
	if len(o.Description) > 256 {
		return errors.New("description must be at most 256 characters")
	}
	return nil
}

var (
	adjectives = []string{"amber", "brisk", "calm", "daring", "eager", "fuzzy", "gentle", "humble", "icy", "jolly", "keen", "lucky", "mellow", "nimble", "quiet", "rapid", "silent", "tidy", "vivid", "witty"}
	nouns      = []string{"badger", "comet", "dolphin", "falcon", "glacier", "harbor", "island", "lantern", "meadow", "nebula", "otter", "pine", "quartz", "river", "summit", "tiger", "valley", "willow", "yak", "zephyr"}
)

// GenerateName returns a random name for a personal organization, e.g. "brisk-otter-3fa2c1".
func GenerateName() (string, error) {
	adj, err := pick(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(nouns)
	if err != nil {
		return "", err
	}
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return adj + "-" + noun + "-" + hex.EncodeToString(b), nil
}

func pick(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[n.Int64()], nil
}
