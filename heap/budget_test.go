package heap

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

func TestBudget_Unlimited(t *testing.T) {
	budget := NewBudget(0)
	require.Equal(t, 0, budget.Limit())
	require.Equal(t, -1, budget.Available())

	require.NoError(t, budget.AddBlockAllocation(1 << 40))
	require.Equal(t, -1, budget.Available())
	budget.RemoveBlockAllocation(1 << 40)
}

func TestBudget_Limit(t *testing.T) {
	budget := NewBudget(1000)
	require.Equal(t, 1000, budget.Limit())

	require.NoError(t, budget.AddBlockAllocation(600))
	require.Equal(t, 400, budget.Available())

	err := budget.AddBlockAllocation(401)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfMemory))
	require.Equal(t, 400, budget.Available())

	require.NoError(t, budget.AddBlockAllocation(400))
	require.Equal(t, 0, budget.Available())

	budget.AddAllocation(100)
	budget.AddAllocation(28)
	require.Equal(t, memutils.Statistics{
		BlockCount:      2,
		AllocationCount: 2,
		BlockBytes:      1000,
		AllocationBytes: 128,
	}, budget.Statistics())

	budget.RemoveAllocation(100)
	budget.RemoveAllocation(28)
	budget.RemoveBlockAllocation(600)
	budget.RemoveBlockAllocation(400)
	require.Equal(t, memutils.Statistics{}, budget.Statistics())
	require.Equal(t, 1000, budget.Available())
}

func TestBudget_Underflow(t *testing.T) {
	budget := NewBudget(0)
	budget.AddAllocation(10)

	require.Panics(t, func() {
		budget.RemoveAllocation(11)
	})
	require.Panics(t, func() {
		budget.RemoveBlockAllocation(1)
	})
}

func TestBudget_ConcurrentReservations(t *testing.T) {
	budget := NewBudget(100 * 64)

	var wg sync.WaitGroup
	var mutex sync.Mutex
	succeeded := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if budget.AddBlockAllocation(64) == nil {
				mutex.Lock()
				succeeded++
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 100, succeeded)
	require.Equal(t, 0, budget.Available())
}
