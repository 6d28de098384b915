package testutil

import (
	"testing"

	"github.com/mnguyen/mailbridge/internal/archive"
)

// NewTestStore creates an in-memory archive Store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *archive.Store {
	t.Helper()

	s, err := archive.NewStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
