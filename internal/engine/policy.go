package engine

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"envman/internal/listvalue"
	"envman/internal/model"
)

// BatchResult reports a BatchDelete. Succeeded and Failed keep input order.
type BatchResult struct {
	Succeeded []string
	Failed    []string
	Errors    map[string]error
}

// ParseElementID splits a list element id into its parent id and index.
// Only ids in the form model.ElementID produces are accepted, so "p#+1"
// and "p#01" do not alias "p#1".
func ParseElementID(id string) (parentID string, index int, ok bool) {
	i := strings.LastIndex(id, "#")
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || model.ElementID(id[:i], n) != id {
		return "", 0, false
	}
	return id[:i], n, true
}

// Edit sets the value addressed by targetID. A record id replaces the whole
// value. A list element id replaces that one element of the parent as it is
// in the store right now and writes the re-encoded list back in a single
// update. newValue is written verbatim. On failure nothing is written and the
// store is unchanged; on success the record's validity returns to Unknown.
func (c *Controller) Edit(ctx context.Context, targetID, newValue string) error {
	if _, ok := c.store.Get(targetID); ok {
		return c.editRecord(ctx, targetID, targetID, func(model.VariableRecord) (string, error) {
			return newValue, nil
		})
	}

	parentID, index, ok := ParseElementID(targetID)
	if !ok {
		return opError("edit", targetID, ErrNotFound)
	}
	return c.editRecord(ctx, parentID, targetID, func(parent model.VariableRecord) (string, error) {
		elements := listvalue.Decode(parent.Value)
		if index < 0 || index >= len(elements) {
			return "", ErrOutOfRange
		}
		elements[index] = newValue
		return listvalue.Encode(elements), nil
	})
}

// editRecord runs read-compute-write for record id under its record lock.
// target is the id the caller addressed, used in errors.
func (c *Controller) editRecord(ctx context.Context, id, target string, compute func(model.VariableRecord) (string, error)) error {
	unlock := c.locks.Lock(id)
	defer unlock()

	current, ok := c.store.Get(id)
	if !ok {
		return opError("edit", target, ErrNotFound)
	}
	value, err := compute(current)
	if err != nil {
		return opError("edit", target, err)
	}
	if err := c.gw.Update(ctx, id, current.Name, value, current.Scope, current.Note); err != nil {
		return opError("edit", target, classify(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	current.Value = value
	current.UpdatedAt = c.now()
	c.store.Put(current)
	c.tracker.Reset(id)
	// Snapshots taken before this write must not overwrite it.
	c.gens.issue(OpRefresh)
	c.gens.issue(OpValidate)
	return nil
}

// Add creates a record through the gateway and appends it to the store.
func (c *Controller) Add(ctx context.Context, name, value string, scope model.Scope, note *string) (model.VariableRecord, error) {
	r, err := c.gw.Create(ctx, name, value, scope, note)
	if err != nil {
		return model.VariableRecord{}, opError("add", name, classify(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Append(r)
	c.tracker.Reset(r.ID)
	c.gens.issue(OpRefresh)
	return r, nil
}

// Delete removes a record. List element ids are rejected with
// ErrUnsupportedOperation; removing an element is an Edit of its parent.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if _, ok := c.store.Get(id); !ok {
		if parentID, _, ok := ParseElementID(id); ok {
			if _, ok := c.store.Get(parentID); ok {
				return opError("delete", id, ErrUnsupportedOperation)
			}
		}
	}

	unlock := c.locks.Lock(id)
	defer unlock()

	if err := c.gw.Delete(ctx, id); err != nil {
		return opError("delete", id, classify(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Remove(id)
	c.tracker.Forget(id)
	c.gens.issue(OpRefresh)
	return nil
}

// BatchDelete deletes ids concurrently. A failure does not stop the others.
func (c *Controller) BatchDelete(ctx context.Context, ids []string) BatchResult {
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(c.batchLimit)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = c.Delete(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Errors: make(map[string]error)}
	for i, id := range ids {
		if errs[i] != nil {
			res.Failed = append(res.Failed, id)
			res.Errors[id] = errs[i]
			c.logger.Warn("batch delete failed", "id", id, "error", errs[i])
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}
