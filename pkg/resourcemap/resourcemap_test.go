package resourcemap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type entry struct {
	id  string
	val int
}

func (e entry) UUID() string { return e.id }

func TestInsertGet(t *testing.T) {
	m := New[string, entry]()
	m.Insert("a", entry{id: "a", val: 1})

	h := m.Get("a")
	require.NotNil(t, h)
	require.Equal(t, entry{id: "a", val: 1}, h.Peek())

	require.Nil(t, m.Get("missing"))
}

func TestHandleLockSetUnlock(t *testing.T) {
	m := New[string, entry]()
	h := m.Insert("a", entry{id: "a", val: 1})

	v := h.Lock()
	v.val = 2
	h.Set(v)
	h.Unlock()

	require.Equal(t, 2, m.Get("a").Peek().val)
}

func TestInsertLockedBlocksConcurrentReaders(t *testing.T) {
	m := New[string, entry]()
	h := m.InsertLocked("a", entry{id: "a", val: 1})

	done := make(chan struct{})
	go func() {
		other := m.Get("a")
		other.Lock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("concurrent Lock acquired before InsertLocked's holder released it")
	default:
	}

	h.Unlock()
	<-done
}

func TestRemove(t *testing.T) {
	m := New[string, entry]()
	m.Insert("a", entry{id: "a"})
	require.Equal(t, 1, m.Len())

	m.Remove("a")
	require.Equal(t, 0, m.Len())
	require.Nil(t, m.Get("a"))
}

func TestClear(t *testing.T) {
	m := New[string, entry]()
	m.Insert("a", entry{id: "a"})
	m.Insert("b", entry{id: "b"})

	m.Clear()
	require.Equal(t, 0, m.Len())
}

func TestUpdateReplacesWholesale(t *testing.T) {
	m := New[string, entry]()
	m.Insert("stale", entry{id: "stale"})

	m.Update([]entry{{id: "a"}, {id: "b"}}, func(e entry) string { return e.id })

	require.Equal(t, 2, m.Len())
	require.Nil(t, m.Get("stale"))
	require.NotNil(t, m.Get("a"))
	require.NotNil(t, m.Get("b"))
}

func TestToSliceSnapshot(t *testing.T) {
	m := New[string, entry]()
	m.Insert("a", entry{id: "a", val: 1})
	m.Insert("b", entry{id: "b", val: 2})

	got := m.ToSlice()
	require.Len(t, got, 2)
}

func TestConcurrentInsertIsRaceFree(t *testing.T) {
	m := New[string, entry]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			m.Insert(id, entry{id: id, val: i})
		}(i)
	}
	wg.Wait()
	require.True(t, m.Len() > 0)
}
