package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Put(Orders, "a", record{ID: "a", Name: "toast"}))

	var got record
	require.NoError(t, s.Get(Orders, "a", &got))
	assert.Equal(t, record{ID: "a", Name: "toast"}, got)

	require.NoError(t, s.Delete(Orders, "a"))
	assert.ErrorIs(t, s.Get(Orders, "a", &got), ErrNotFound)
	assert.ErrorIs(t, s.Delete(Orders, "a"), ErrNotFound)
}

func TestUnknownBucket(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Put("nope", "k", record{}))
	_, err := List[record](s, "nope")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	s := openTemp(t)

	empty, err := List[record](s, Gallery)
	require.NoError(t, err)
	assert.NotNil(t, empty, "empty collections list as [] not null")
	assert.Empty(t, empty)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(Gallery, id, record{ID: id}))
	}

	items, err := List[record](s, Gallery)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].ID, "keys come back in byte order")

	n, err := s.Count(Gallery)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdateRollsBack(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Put(Uploads, "u1", record{ID: "u1"}))

	err := s.Update(func(tx *Tx) error {
		if err := tx.Put(Gallery, "u1", record{ID: "u1"}); err != nil {
			return err
		}
		return tx.Delete(Uploads, "missing")
	})
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Count(Gallery)
	require.NoError(t, err)
	assert.Zero(t, n, "failed transaction must not leave a gallery item behind")
}

func TestAppendAndTrim(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Update(func(tx *Tx) error {
		for i := 0; i < 10; i++ {
			seq, err := tx.Append(Visits, record{Name: string(rune('a' + i))})
			if err != nil {
				return err
			}
			assert.EqualValues(t, i+1, seq)
		}
		return nil
	}))

	var removed int
	require.NoError(t, s.Update(func(tx *Tx) error {
		var err error
		removed, err = tx.Trim(Visits, 4)
		return err
	}))
	assert.Equal(t, 6, removed)

	visits, err := List[record](s, Visits)
	require.NoError(t, err)
	require.Len(t, visits, 4)
	assert.Equal(t, "g", visits[0].Name)
	assert.Equal(t, "j", visits[3].Name)
}

func TestClear(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Put(Bans, "1.2.3.4", record{ID: "1.2.3.4"}))
	require.NoError(t, s.Put(Bans, "5.6.7.8", record{ID: "5.6.7.8"}))

	var n int
	require.NoError(t, s.Update(func(tx *Tx) error {
		var err error
		n, err = tx.Clear(Bans)
		return err
	}))
	assert.Equal(t, 2, n)

	count, err := s.Count(Bans)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.Put(Bans, "9.9.9.9", record{}), "bucket usable after clear")
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(Products, "p1", record{ID: "p1", Name: "Strawberry"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var got record
	require.NoError(t, s.Get(Products, "p1", &got))
	assert.Equal(t, "Strawberry", got.Name)
}

func TestConcurrentAccess(t *testing.T) {
	s := openTemp(t)

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.Update(func(tx *Tx) error {
					_, err := tx.Append(Visits, record{ID: fmt.Sprintf("%d-%d", w, i)})
					return err
				})
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, _ = List[record](s, Visits)
				_, _ = s.Count(Visits)
			}
		}()
	}
	wg.Wait()

	n, err := s.Count(Visits)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, n)
}
