package credit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepo mirrors the atomic semantics of the postgres repository.
type memoryRepo struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	windowDate time.Time
	used       int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string]*entry)}
}

func (m *memoryRepo) Consume(_ context.Context, userID string, day time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok || !e.windowDate.Equal(day) {
		m.entries[userID] = &entry{windowDate: day, used: 1}
		return 1, nil
	}
	if e.used >= limit {
		return 0, ErrExhausted
	}
	e.used++
	return e.used, nil
}

func (m *memoryRepo) Used(_ context.Context, userID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok || !e.windowDate.Equal(day) {
		return 0, nil
	}
	return e.used, nil
}

func TestConsumeWalksDownToZero(t *testing.T) {
	svc := NewService(newMemoryRepo(), DailyLimit)
	ctx := context.Background()

	for want := DailyLimit - 1; want >= 0; want-- {
		remaining, err := svc.Consume(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, want, remaining)
	}

	_, err := svc.Consume(ctx, "user-1")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestConsumeResetsOnDateRollover(t *testing.T) {
	svc := NewService(newMemoryRepo(), DailyLimit)
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < DailyLimit; i++ {
		_, err := svc.Consume(ctx, "user-1")
		require.NoError(t, err)
	}
	_, err := svc.Consume(ctx, "user-1")
	require.ErrorIs(t, err, ErrExhausted)

	now = now.Add(2 * time.Hour)

	remaining, err := svc.Consume(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, DailyLimit-1, remaining)

	st, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Used)
	assert.Equal(t, DailyLimit-1, st.Remaining)
}

func TestConfiguredLimitOverridesDefault(t *testing.T) {
	svc := NewService(newMemoryRepo(), 2)
	ctx := context.Background()

	remaining, err := svc.Consume(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, err = svc.Consume(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, "user-1")
	assert.ErrorIs(t, err, ErrExhausted)

	st, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Limit)
	assert.Equal(t, 0, st.Remaining)
}

func TestNonPositiveLimitFallsBackToDefault(t *testing.T) {
	svc := NewService(newMemoryRepo(), 0)
	st, err := svc.Status(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, DailyLimit, st.Limit)
}

func TestStatusFreshUser(t *testing.T) {
	svc := NewService(newMemoryRepo(), DailyLimit)
	st, err := svc.Status(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Used)
	assert.Equal(t, DailyLimit, st.Remaining)
	assert.Equal(t, DailyLimit, st.Limit)
	assert.False(t, st.ResetsAt.IsZero())
}

func TestUsersAreIndependent(t *testing.T) {
	svc := NewService(newMemoryRepo(), DailyLimit)
	ctx := context.Background()

	_, err := svc.Consume(ctx, "user-1")
	require.NoError(t, err)

	st, err := svc.Status(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Used)
}
