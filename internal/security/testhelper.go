package security

import "time"

// TestSecret is the HS256 secret used by NewTestCodec. For unit tests only.
const TestSecret = "test-secret-do-not-use-in-production"

// NewTestCodec returns a Codec using TestSecret and a 15 minute TTL.
// For unit tests only. Callers must not use in production.
func NewTestCodec() *Codec {
	return NewCodec(TestSecret, 15*time.Minute)
}
