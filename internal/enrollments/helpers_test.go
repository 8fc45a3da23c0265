package enrollments

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/testutil"
)

const (
	programA = "11111111-1111-1111-1111-111111111111"
	programB = "22222222-2222-2222-2222-222222222222"
	curricA  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func createTestStore(t *testing.T, opts ...Option) (*Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(testEpoch)
	s, err := Open(filepath.Join(t.TempDir(), "enrollments.db"), append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func mustUser(t *testing.T, s *Store, username string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, username+"@example.com")
	require.NoError(t, err)
	return u
}

func mustEnroll(t *testing.T, s *Store, req EnrollRequest) ProgramEnrollment {
	t.Helper()
	if req.CurriculumUUID == "" {
		req.CurriculumUUID = curricA
	}
	e, err := s.Enroll(context.Background(), req)
	require.NoError(t, err)
	return e
}
