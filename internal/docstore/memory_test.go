package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func create(t *testing.T, m *Memory, collection, id string, doc interface{}) {
	t.Helper()
	err := m.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Create(collection, id, doc)
	})
	require.NoError(t, err)
}

func TestCreateAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	create(t, m, "docs", "a", &testDoc{ID: "a", Name: "first", Count: 1})

	var got testDoc
	require.NoError(t, m.Get(ctx, "docs", "a", &got))
	assert.Equal(t, "first", got.Name)

	err := m.Get(ctx, "docs", "missing", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateExisting(t *testing.T) {
	m := NewMemory()

	create(t, m, "docs", "a", &testDoc{ID: "a"})

	err := m.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Create("docs", "a", &testDoc{ID: "a"})
	})
	assert.ErrorIs(t, err, ErrExists)
}

func TestUpdateMissing(t *testing.T) {
	m := NewMemory()

	err := m.RunTransaction(context.Background(), func(tx Tx) error {
		return tx.Update("docs", "missing", &testDoc{ID: "missing"})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConflictOnConcurrentUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	create(t, m, "docs", "a", &testDoc{ID: "a", Count: 1})

	err := m.RunTransaction(ctx, func(tx Tx) error {
		var doc testDoc
		if err := tx.Get("docs", "a", &doc); err != nil {
			return err
		}

		// Another writer commits between this transaction's read and
		// its commit.
		interfere := m.RunTransaction(ctx, func(tx2 Tx) error {
			var doc2 testDoc
			if err := tx2.Get("docs", "a", &doc2); err != nil {
				return err
			}
			doc2.Count = 99
			return tx2.Update("docs", "a", &doc2)
		})
		require.NoError(t, interfere)

		doc.Count = 2
		return tx.Update("docs", "a", &doc)
	})
	assert.ErrorIs(t, err, ErrConflict)

	// The interfering write won.
	var got testDoc
	require.NoError(t, m.Get(ctx, "docs", "a", &got))
	assert.Equal(t, 99, got.Count)
}

func TestConflictOnObservedAbsence(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.RunTransaction(ctx, func(tx Tx) error {
		var doc testDoc
		// Observing absence puts the document in the read set.
		getErr := tx.Get("docs", "a", &doc)
		require.ErrorIs(t, getErr, ErrNotFound)

		interfere := m.RunTransaction(ctx, func(tx2 Tx) error {
			return tx2.Create("docs", "a", &testDoc{ID: "a"})
		})
		require.NoError(t, interfere)

		return tx.Create("docs", "b", &testDoc{ID: "b"})
	})
	assert.ErrorIs(t, err, ErrConflict)

	var got testDoc
	assert.ErrorIs(t, m.Get(ctx, "docs", "b", &got), ErrNotFound)
}

func TestFailedBodyWritesNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	boom := assert.AnError
	err := m.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Create("docs", "a", &testDoc{ID: "a"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var got testDoc
	assert.ErrorIs(t, m.Get(ctx, "docs", "a", &got), ErrNotFound)
}

func TestQueryFilterOrderLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	create(t, m, "docs", "a", &testDoc{ID: "a", Name: "cats", Count: 3})
	create(t, m, "docs", "b", &testDoc{ID: "b", Name: "cats", Count: 1})
	create(t, m, "docs", "c", &testDoc{ID: "c", Name: "dogs", Count: 2})

	var docs []testDoc
	q := Query{
		Filters: []Filter{{Field: "name", Value: "cats"}},
		OrderBy: "count",
		Desc:    true,
	}
	require.NoError(t, m.Query(ctx, "docs", q, &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)

	docs = nil
	q.Limit = 1
	require.NoError(t, m.Query(ctx, "docs", q, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
}

func TestWatchDeliversCommittedEvents(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var events []Event
	sub, err := m.Watch(ctx, "docs", func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	create(t, m, "docs", "a", &testDoc{ID: "a"})
	create(t, m, "other", "x", &testDoc{ID: "x"})

	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, events[0].Type)
	assert.Equal(t, "a", events[0].ID)

	// Cancellation is idempotent and stops delivery.
	sub.Cancel()
	sub.Cancel()

	create(t, m, "docs", "b", &testDoc{ID: "b"})
	assert.Len(t, events, 1)
}

func TestWatchSeesNoFailedTransaction(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var events []Event
	sub, err := m.Watch(ctx, "docs", func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	defer sub.Cancel()

	_ = m.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.Create("docs", "a", &testDoc{ID: "a"}); err != nil {
			return err
		}
		return assert.AnError
	})

	assert.Empty(t, events)
}
