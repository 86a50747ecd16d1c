package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envman/internal/model"
)

func loadedController(t *testing.T, gw *fakeGateway) *Controller {
	t.Helper()
	c := NewController(gw)
	require.NoError(t, c.Refresh(context.Background()))
	return c
}

func TestEditListElement(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b;c;d", model.ScopeUser))
	c := loadedController(t, gw)

	require.NoError(t, c.Edit(context.Background(), "p#2", "NEWVAL"))

	calls := gw.updateCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, updateCall{ID: "p", Name: "PATH", Value: "a;b;NEWVAL;d", Scope: model.ScopeUser}, calls[0])

	r, ok := c.Record("p")
	require.True(t, ok)
	assert.Equal(t, "a;b;NEWVAL;d", r.Value)
}

func TestEditListElementNormalizesOtherSegments(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", " a ;; b ;c;", model.ScopeUser))
	c := loadedController(t, gw)

	require.NoError(t, c.Edit(context.Background(), "p#1", " B "))
	calls := gw.updateCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "a; B ;c", calls[0].Value)
}

func TestEditListElementEmptyValueIsDroppedOnNextBuild(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b;c", model.ScopeUser))
	c := loadedController(t, gw)

	require.NoError(t, c.Edit(context.Background(), "p#1", ""))
	assert.Equal(t, "a;;c", gw.updateCalls()[0].Value)

	entries := c.Projection()
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].(model.ListHeaderEntry).ElementCount)
}

func TestEditListElementOutOfRange(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b;c", model.ScopeUser))
	c := loadedController(t, gw)

	for _, id := range []string{"p#5", "p#3", "p#-1"} {
		err := c.Edit(context.Background(), id, "x")
		assert.ErrorIs(t, err, ErrOutOfRange, id)
	}
	assert.Empty(t, gw.updateCalls())

	r, _ := c.Record("p")
	assert.Equal(t, "a;b;c", r.Value)
}

func TestEditResolvesParentFromLiveStore(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b;c;d", model.ScopeUser))
	c := loadedController(t, gw)

	// An id from an older projection still resolves against the current value.
	stale := c.Projection()
	require.Len(t, stale, 5)

	gw.setRecords(rec("p", "PATH", "x;y", model.ScopeUser))
	require.NoError(t, c.Refresh(context.Background()))

	assert.ErrorIs(t, c.Edit(context.Background(), stale[4].EntryID(), "z"), ErrOutOfRange)
	require.NoError(t, c.Edit(context.Background(), stale[2].EntryID(), "z"))
	assert.Equal(t, "x;z", gw.updateCalls()[0].Value)
}

func TestConcurrentElementEditsAllLand(t *testing.T) {
	const n = 50
	initial := make([]string, n)
	want := make([]string, n)
	for i := range n {
		initial[i] = fmt.Sprintf("v%d", i)
		want[i] = fmt.Sprintf("X%d", i)
	}
	gw := newFakeGateway(rec("p", "PATH", strings.Join(initial, ";"), model.ScopeUser))
	c := loadedController(t, gw)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Edit(context.Background(), model.ElementID("p", i), want[i])
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "edit %d", i)
	}
	r, ok := c.Record("p")
	require.True(t, ok)
	assert.Equal(t, strings.Join(want, ";"), r.Value)

	calls := gw.updateCalls()
	require.Len(t, calls, n)
	assert.Equal(t, strings.Join(want, ";"), calls[n-1].Value)
}

func TestEditPlainRecord(t *testing.T) {
	note := "editor of choice"
	r := rec("e", "EDITOR", "vim", model.ScopeUser)
	r.Note = &note
	gw := newFakeGateway(r)
	c := loadedController(t, gw)

	require.NoError(t, c.Edit(context.Background(), "e", "nvim"))
	assert.Equal(t, []updateCall{{ID: "e", Name: "EDITOR", Value: "nvim", Scope: model.ScopeUser}}, gw.updateCalls())

	got, _ := c.Record("e")
	assert.Equal(t, "nvim", got.Value)
	assert.Equal(t, &note, got.Note)
}

func TestEditUnknownTarget(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b", model.ScopeUser))
	c := loadedController(t, gw)

	assert.ErrorIs(t, c.Edit(context.Background(), "missing", "x"), ErrNotFound)
	assert.ErrorIs(t, c.Edit(context.Background(), "missing#0", "x"), ErrNotFound)
	assert.ErrorIs(t, c.Edit(context.Background(), "p#+1", "x"), ErrNotFound)
	assert.ErrorIs(t, c.Edit(context.Background(), "p#01", "x"), ErrNotFound)
	assert.Empty(t, gw.updateCalls())
}

func TestEditGatewayFailureLeavesStoreUnchanged(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b", model.ScopeUser))
	c := loadedController(t, gw)
	gw.failUpdate = errors.New("disk full")

	err := c.Edit(context.Background(), "p#0", "z")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "edit", opErr.Op)
	assert.Equal(t, "p#0", opErr.ID)

	r, _ := c.Record("p")
	assert.Equal(t, "a;b", r.Value)
}

func TestEditResetsValidity(t *testing.T) {
	gw := newFakeGateway(rec("x", "JAVA_HOME", "/nope", model.ScopeUser))
	gw.validation = []model.ValidationResult{{ID: "x", Valid: false}}
	c := loadedController(t, gw)

	require.NoError(t, c.ValidateAll(context.Background()))
	assert.Equal(t, []string{"x"}, c.InvalidIDs())

	require.NoError(t, c.Edit(context.Background(), "x", "/usr/lib/jvm"))
	assert.Equal(t, model.ValidityUnknown, c.Validity("x"))
	assert.Empty(t, c.InvalidIDs())
}

func TestDeleteListElementIsUnsupported(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b", model.ScopeUser))
	c := loadedController(t, gw)

	assert.ErrorIs(t, c.Delete(context.Background(), "p#0"), ErrUnsupportedOperation)
	_, ok := c.Record("p")
	assert.True(t, ok)
}

func TestDeleteRecord(t *testing.T) {
	gw := newFakeGateway(rec("p", "PATH", "a;b", model.ScopeUser), rec("e", "EDITOR", "vim", model.ScopeUser))
	gw.validation = []model.ValidationResult{{ID: "p", Valid: false}, {ID: "e", Valid: true}}
	c := loadedController(t, gw)
	require.NoError(t, c.ValidateAll(context.Background()))

	require.NoError(t, c.Delete(context.Background(), "p"))
	_, ok := c.Record("p")
	assert.False(t, ok)
	assert.Empty(t, c.InvalidIDs())

	assert.ErrorIs(t, c.Delete(context.Background(), "p"), ErrNotFound)
}

func TestBatchDeletePartialFailure(t *testing.T) {
	gw := newFakeGateway(
		rec("A", "ONE", "1", model.ScopeUser),
		rec("B", "TWO", "2", model.ScopeUser),
		rec("C", "THREE", "3", model.ScopeUser),
	)
	gw.failDelete["B"] = errors.New("access denied")
	c := loadedController(t, gw)

	res := c.BatchDelete(context.Background(), []string{"A", "B", "C"})
	assert.Equal(t, []string{"A", "C"}, res.Succeeded)
	assert.Equal(t, []string{"B"}, res.Failed)
	assert.ErrorIs(t, res.Errors["B"], ErrGateway)

	listed, err := gw.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "B", listed[0].ID)

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "B", records[0].ID)
}

func TestBatchDeleteInvalidSelection(t *testing.T) {
	gw := newFakeGateway(
		rec("A", "A_HOME", "/missing", model.ScopeUser),
		rec("B", "B", "ok", model.ScopeUser),
		rec("C", "C_DIR", "/missing", model.ScopeSystem),
	)
	gw.validation = []model.ValidationResult{{ID: "A", Valid: false}, {ID: "B", Valid: true}, {ID: "C", Valid: false}}
	c := loadedController(t, gw)
	require.NoError(t, c.ValidateAll(context.Background()))

	selection := c.InvalidIDs()
	assert.Equal(t, []string{"A", "C"}, selection)

	// The caller deselects C before confirming.
	res := c.BatchDelete(context.Background(), selection[:1])
	assert.Equal(t, []string{"A"}, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{"C"}, c.InvalidIDs())
}

func TestAddAppendsToStore(t *testing.T) {
	gw := newFakeGateway(rec("a", "EDITOR", "vim", model.ScopeUser))
	c := loadedController(t, gw)

	r, err := c.Add(context.Background(), "GOPATH", "/home/me/go", model.ScopeUser, nil)
	require.NoError(t, err)
	assert.Equal(t, "id-2", r.ID)

	records := c.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "GOPATH", records[1].Name)
	assert.Equal(t, model.ValidityUnknown, records[1].Valid)
}
