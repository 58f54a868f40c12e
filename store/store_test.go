package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
)

// storeFactory builds a fresh store for a subtest run.
type storeFactory func(t *testing.T) store.StateStore

func testStores(t *testing.T, run func(t *testing.T, s store.StateStore)) {
	t.Helper()

	factories := map[string]storeFactory{
		"memory": func(t *testing.T) store.StateStore {
			return store.NewMemoryStore()
		},
		"badger": func(t *testing.T) store.StateStore {
			s, err := store.NewBadgerStore(store.BadgerConfig{
				Path: filepath.Join(t.TempDir(), "state"),
			})
			require.NoError(t, err)
			return s
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer func() { require.NoError(t, s.Close()) }()
			run(t, s)
		})
	}
}

func TestGetMissing(t *testing.T) {
	testStores(t, func(t *testing.T, s store.StateStore) {
		_, err := s.Get([]byte("missing"))
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestCommitAndGet(t *testing.T) {
	testStores(t, func(t *testing.T, s store.StateStore) {
		err := s.Commit([]store.Record{
			{Key: []byte("a"), Value: []byte("1")},
			{Key: []byte("b"), Value: []byte("2")},
		})
		require.NoError(t, err)

		v, err := s.Get([]byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), v)

		v, err = s.Get([]byte("b"))
		require.NoError(t, err)
		require.Equal(t, []byte("2"), v)
	})
}

func TestCommitOverwrites(t *testing.T) {
	testStores(t, func(t *testing.T, s store.StateStore) {
		require.NoError(t, s.Commit([]store.Record{{Key: []byte("k"), Value: []byte("old")}}))
		require.NoError(t, s.Commit([]store.Record{{Key: []byte("k"), Value: []byte("new")}}))

		v, err := s.Get([]byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("new"), v)
	})
}

func TestIteratePrefix(t *testing.T) {
	testStores(t, func(t *testing.T, s store.StateStore) {
		err := s.Commit([]store.Record{
			{Key: []byte("batch/2"), Value: []byte("b2")},
			{Key: []byte("batch/1"), Value: []byte("b1")},
			{Key: []byte("sub/1/x"), Value: []byte("s1")},
			{Key: []byte("meta/access"), Value: []byte("m")},
		})
		require.NoError(t, err)

		var keys, values []string
		err = s.Iterate([]byte("batch/"), func(key, value []byte) error {
			keys = append(keys, string(key))
			values = append(values, string(value))
			return nil
		})
		require.NoError(t, err)

		// Prefix-filtered, in key order.
		require.Equal(t, []string{"batch/1", "batch/2"}, keys)
		require.Equal(t, []string{"b1", "b2"}, values)
	})
}

func TestIterateEmptyPrefix(t *testing.T) {
	testStores(t, func(t *testing.T, s store.StateStore) {
		err := s.Iterate([]byte("nothing/"), func(_, _ []byte) error {
			t.Fatal("unexpected callback")
			return nil
		})
		require.NoError(t, err)
	})
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")

	s, err := store.NewBadgerStore(store.BadgerConfig{Path: path, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Commit([]store.Record{{Key: []byte("k"), Value: []byte("v")}}))
	require.NoError(t, s.Close())

	s, err = store.NewBadgerStore(store.BadgerConfig{Path: path})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}
