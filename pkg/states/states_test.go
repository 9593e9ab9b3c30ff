package states

import (
	"testing"

	"github.com/cuemby/agent-core/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestUpdatePoolsReplacesWholesale(t *testing.T) {
	c := New()
	c.UpdatePools([]PoolState{{ID: "stale", Status: types.StatusOnline}})

	c.UpdatePools([]PoolState{{ID: "p1", Status: types.StatusOnline, Capacity: 100, Used: 10}})

	_, ok := c.Pool("stale")
	require.False(t, ok, "a pool absent from the latest poll drops out of the cache")

	p, ok := c.Pool("p1")
	require.True(t, ok)
	require.Equal(t, uint64(100), p.Capacity)
}

func TestUpdateReplicas(t *testing.T) {
	c := New()
	c.UpdateReplicas([]ReplicaState{{ID: "r1", Pool: "p1", Status: types.StatusOnline}})

	r, ok := c.Replica("r1")
	require.True(t, ok)
	require.Equal(t, types.PoolID("p1"), r.Pool)

	require.Len(t, c.Replicas(), 1)
}

func TestUpdateNexuses(t *testing.T) {
	c := New()
	c.UpdateNexuses([]NexusState{{ID: "n1", Node: "node-1", Children: []types.ChildUri{"uri-a"}}})

	n, ok := c.Nexus("n1")
	require.True(t, ok)
	require.Equal(t, []types.ChildUri{"uri-a"}, n.Children)

	require.Len(t, c.Nexuses(), 1)
}

func TestLookupMissReturnsFalse(t *testing.T) {
	c := New()
	_, ok := c.Pool("absent")
	require.False(t, ok)
	_, ok = c.Replica("absent")
	require.False(t, ok)
	_, ok = c.Nexus("absent")
	require.False(t, ok)
}
