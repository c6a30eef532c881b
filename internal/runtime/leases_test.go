package runtime

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-works/beacon/internal/errors"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runtime.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateLease(t *testing.T) {
	store := testStore(t)

	lease, err := store.CreateLease("T001", "ADEADBEEF", 0)
	require.NoError(t, err)
	assert.Equal(t, "T001", lease.TaskID)
	assert.Equal(t, "ADEADBEEF", lease.AgentID)
	assert.True(t, lease.Active(time.Now().UTC()))
	assert.Len(t, lease.ID, 9)

	// Zero ttl means the default.
	ttl := lease.ExpiresAt.Sub(lease.CreatedAt)
	assert.Equal(t, DefaultLeaseTTL, ttl)
}

func TestCreateLeaseConflict(t *testing.T) {
	store := testStore(t)

	first, err := store.CreateLease("T001", "AAAAAAAA1", time.Minute)
	require.NoError(t, err)

	_, err = store.CreateLease("T001", "ABBBBBBB2", time.Minute)
	require.Error(t, err)
	var conflict *errors.ClaimConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "T001", conflict.TaskID)
	assert.Equal(t, first.AgentID, conflict.HolderID)
	assert.Greater(t, conflict.Remaining, time.Duration(0))
}

func TestCreateLeaseAfterExpiry(t *testing.T) {
	store := testStore(t)

	first, err := store.CreateLease("T001", "AAAAAAAA1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.ReleaseLease("T001", first.AgentID))

	// Expired lease no longer blocks a new claim; old row survives.
	second, err := store.CreateLease("T001", "ABBBBBBB2", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLeaseTTLClamping(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"zero uses default", 0, DefaultLeaseTTL},
		{"below floor", 5 * time.Second, MinLeaseTTL},
		{"above ceiling", 48 * time.Hour, MaxLeaseTTL},
		{"in range", 30 * time.Minute, 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampTTL(tt.ttl))
		})
	}
}

func TestRenewLease(t *testing.T) {
	store := testStore(t)

	lease, err := store.CreateLease("T001", "AAAAAAAA1", time.Minute)
	require.NoError(t, err)

	renewed, err := store.RenewLease("T001", "AAAAAAAA1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, lease.ID, renewed.ID)
	assert.Equal(t, 1, renewed.RenewCount)
	assert.True(t, renewed.ExpiresAt.After(lease.ExpiresAt))

	// Renewing by lease id works too.
	renewed, err = store.RenewLease(lease.ID, "AAAAAAAA1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, renewed.RenewCount)
}

func TestRenewLeaseWrongAgent(t *testing.T) {
	store := testStore(t)

	_, err := store.CreateLease("T001", "AAAAAAAA1", time.Minute)
	require.NoError(t, err)

	_, err = store.RenewLease("T001", "ABBBBBBB2", time.Minute)
	assert.ErrorIs(t, err, errors.ErrLeaseMismatch)
}

func TestRenewLeaseNoneActive(t *testing.T) {
	store := testStore(t)
	_, err := store.RenewLease("T001", "AAAAAAAA1", time.Minute)
	assert.ErrorIs(t, err, errors.ErrNoActiveLease)
}

func TestReleaseLease(t *testing.T) {
	store := testStore(t)

	_, err := store.CreateLease("T001", "AAAAAAAA1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.ReleaseLease("T001", "AAAAAAAA1"))

	active, err := store.ActiveLease("T001")
	require.NoError(t, err)
	assert.Nil(t, active)

	// Releasing again reports no active lease.
	err = store.ReleaseLease("T001", "AAAAAAAA1")
	assert.ErrorIs(t, err, errors.ErrNoActiveLease)
}

func TestLeasesByAgent(t *testing.T) {
	store := testStore(t)

	_, err := store.CreateLease("T001", "AAAAAAAA1", time.Minute)
	require.NoError(t, err)
	_, err = store.CreateLease("T002", "AAAAAAAA1", time.Minute)
	require.NoError(t, err)
	_, err = store.CreateLease("T003", "ABBBBBBB2", time.Minute)
	require.NoError(t, err)

	leases, err := store.LeasesByAgent("AAAAAAAA1")
	require.NoError(t, err)
	assert.Len(t, leases, 2)
}

func TestExpireOrphanedLeases(t *testing.T) {
	store := testStore(t)

	agent, err := store.Join(JoinParams{Name: "builder"})
	require.NoError(t, err)

	_, err = store.CreateLease("T001", agent.ID, time.Minute)
	require.NoError(t, err)
	_, err = store.CreateLease("T002", "AGONEGONE", time.Minute)
	require.NoError(t, err)

	n, err := store.ExpireOrphanedLeases()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := store.ActiveLeases()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, agent.ID, active[0].AgentID)
}

func TestIsLeaseRef(t *testing.T) {
	assert.True(t, isLeaseRef("L0a1b2c3d"))
	assert.False(t, isLeaseRef("T001"))
	assert.False(t, isLeaseRef("Longername"))
}

func TestCreateLeaseConcurrent(t *testing.T) {
	// Each claimer gets its own connection to the same database file, so
	// the guarded insert is exercised across processes' worth of handles.
	path := filepath.Join(t.TempDir(), "runtime.db")

	const claimers = 8
	stores := make([]*Store, claimers)
	for i := range stores {
		s, err := Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		stores[i] = s
	}

	start := make(chan struct{})
	results := make([]error, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := stores[i].CreateLease("T001", fmt.Sprintf("A%08d", i), time.Hour)
			results[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		}
	}
	require.Equal(t, 1, wins, "exactly one claimer may win")

	holder, err := stores[0].ActiveLease("T001")
	require.NoError(t, err)
	require.NotNil(t, holder)

	for _, err := range results {
		if err == nil {
			continue
		}
		var conflict *errors.ClaimConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, holder.AgentID, conflict.HolderID, "losers see the winner")
		assert.Greater(t, conflict.Remaining, time.Duration(0))
	}
}
