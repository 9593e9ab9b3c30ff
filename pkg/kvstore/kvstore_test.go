package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(path, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type widget struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestPutObjGetObjRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObj(ctx, "Widget/a", widget{Name: "a", N: 1}))

	var got widget
	require.NoError(t, s.GetObj(ctx, "Widget/a", &got))
	require.Equal(t, widget{Name: "a", N: 1}, got)
}

func TestGetObjMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	var got widget
	err := s.GetObj(context.Background(), "Widget/missing", &got)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetObjRejectsUnknownFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObj(ctx, "Widget/a", map[string]any{"name": "a", "n": 1, "extra": "field"}))

	var got widget
	err := s.GetObj(ctx, "Widget/a", &got)
	require.Error(t, err)
}

func TestDeleteObj(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObj(ctx, "Widget/a", widget{Name: "a"}))
	require.NoError(t, s.DeleteObj(ctx, "Widget/a"))

	var got widget
	err := s.GetObj(ctx, "Widget/a", &got)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetValuesPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObj(ctx, "Widget/a", widget{Name: "a"}))
	require.NoError(t, s.PutObj(ctx, "Widget/b", widget{Name: "b"}))
	require.NoError(t, s.PutObj(ctx, "Gadget/c", widget{Name: "c"}))

	vals, err := s.GetValuesPrefix(ctx, "Widget/")
	require.NoError(t, err)
	require.Len(t, vals, 2)
}

func TestWatchReceivesPutAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop := s.Watch(ctx, "Widget/a")
	defer stop()

	require.NoError(t, s.PutObj(context.Background(), "Widget/a", widget{Name: "a"}))
	ev := <-ch
	require.Equal(t, WatchPut, ev.Kind)

	require.NoError(t, s.DeleteObj(context.Background(), "Widget/a"))
	ev = <-ch
	require.Equal(t, WatchDelete, ev.Kind)
}

func TestWatchIgnoresUnrelatedKey(t *testing.T) {
	s := openTestStore(t)
	ch, stop := s.Watch(context.Background(), "Widget/a")
	defer stop()

	require.NoError(t, s.PutObj(context.Background(), "Widget/other", widget{Name: "other"}))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for unrelated key: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOnline(t *testing.T) {
	s := openTestStore(t)
	require.True(t, s.Online())
}
