package nodepoll

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/agent-core/pkg/health"
	"github.com/cuemby/agent-core/pkg/kvstore"
	"github.com/cuemby/agent-core/pkg/registry"
	"github.com/cuemby/agent-core/pkg/rpc"
	"github.com/cuemby/agent-core/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := kvstore.Open(path, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.New(store, registry.Timing{}, rpc.Timeouts{Connect: 200 * time.Millisecond, Request: 200 * time.Millisecond})
	require.NoError(t, reg.Init(context.Background()))
	return reg
}

func TestSweepMarksUnreachableNodeFaulted(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RegisterNode(context.Background(), &types.NodeSpec{ID: "node-1", Endpoint: "127.0.0.1:1"}))

	cfg := health.Config{Interval: time.Hour, Timeout: 100 * time.Millisecond, Retries: 1, StartPeriod: 0}
	p := New(reg, cfg)
	p.sweep()

	n, ok := reg.Node("node-1")
	require.True(t, ok)
	require.Equal(t, types.StatusFaulted, n.Status.Runtime)
}

func TestSweepSkipsNodeInStartPeriod(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RegisterNode(context.Background(), &types.NodeSpec{ID: "node-1", Endpoint: "127.0.0.1:1"}))

	cfg := health.Config{Interval: time.Hour, Timeout: 100 * time.Millisecond, Retries: 1, StartPeriod: time.Hour}
	p := New(reg, cfg)
	p.sweep()

	n, ok := reg.Node("node-1")
	require.True(t, ok)
	require.Equal(t, types.StatusOnline, n.Status.Runtime, "a node within its start period is never probed")
}

func TestSweepUnreachableNodeContributesNoStateToCache(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RegisterNode(context.Background(), &types.NodeSpec{ID: "node-1", Endpoint: "127.0.0.1:1"}))

	cfg := health.Config{Interval: time.Hour, Timeout: 100 * time.Millisecond, Retries: 1, StartPeriod: 0}
	p := New(reg, cfg)
	p.sweep()

	require.Empty(t, reg.States().Pools())
	require.Empty(t, reg.States().Replicas())
	require.Empty(t, reg.States().Nexuses())
}

func TestStatusForReusesExistingStatus(t *testing.T) {
	reg := newTestRegistry(t)
	p := New(reg, health.DefaultConfig())

	s1 := p.statusFor("node-1")
	s2 := p.statusFor("node-1")
	require.Same(t, s1, s2)
}

func TestStartStopDoesNotPanic(t *testing.T) {
	reg := newTestRegistry(t)
	p := New(reg, health.Config{Interval: time.Millisecond, Timeout: time.Millisecond, Retries: 1})
	p.Start()
	time.Sleep(10 * time.Millisecond)
	p.Stop()
}
