// Package engine owns the canonical copy of the variable records, projects
// it into display entries and turns edits on those entries back into gateway
// writes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"envman/internal/listvalue"
	"envman/internal/model"
)

const defaultBatchConcurrency = 8

// Controller is the single owner of the canonical store. Presentation code
// reads projections from it and mutates only through Edit, Delete,
// BatchDelete and Refresh.
type Controller struct {
	gw         Gateway
	logger     *slog.Logger
	order      []model.Scope
	batchLimit int
	now        func() time.Time

	store *store
	locks *recordLocks

	mu        sync.Mutex // guards the fields below
	tracker   *Tracker
	expansion ExpansionState
	gens      generations
	loaded    bool
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSectionOrder sets the scope group order of projections.
func WithSectionOrder(order []model.Scope) Option {
	return func(c *Controller) {
		if len(order) > 0 {
			c.order = append([]model.Scope(nil), order...)
		}
	}
}

// WithBatchConcurrency bounds the number of deletes BatchDelete runs at once.
func WithBatchConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.batchLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a Controller over gw. The store is empty until the
// first Refresh.
func NewController(gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:         gw,
		logger:     slog.Default(),
		order:      DefaultSectionOrder,
		batchLimit: defaultBatchConcurrency,
		now:        time.Now,
		store:      newStore(),
		locks:      newRecordLocks(),
		tracker:    NewTracker(),
		expansion:  NewExpansionState(),
		gens:       newGenerations(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "controller")
	return c
}

// Refresh reloads the store from the gateway. A refresh overtaken by a newer
// refresh or by a write returns ErrSuperseded and changes nothing.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	ticket := c.gens.issue(OpRefresh)
	c.mu.Unlock()

	records, err := c.gw.List(ctx)
	if err != nil {
		return opError("refresh", "", classify(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gens.current(ticket) {
		c.logger.Debug("discarding stale refresh", "generation", ticket.Generation)
		return opError("refresh", "", ErrSuperseded)
	}
	c.store.Replace(records)
	if !c.loaded {
		c.loaded = true
		for _, r := range records {
			if r.Scope == model.ScopeSystem && strings.EqualFold(r.Name, "PATH") && listvalue.IsListValued(r) {
				c.expansion.Lists[r.ID] = true
			}
		}
	}
	c.logger.Debug("store refreshed", "records", len(records), "generation", ticket.Generation)
	return nil
}

// ValidateAll runs a bulk validation and merges the result. Ids the gateway
// did not return keep their state; that case is reported as
// ErrValidationPartial after the merge.
func (c *Controller) ValidateAll(ctx context.Context) error {
	c.mu.Lock()
	ticket := c.gens.issue(OpValidate)
	c.mu.Unlock()

	results, err := c.gw.ValidateAll(ctx)
	if err != nil {
		return opError("validate", "", classify(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gens.current(ticket) {
		c.logger.Debug("discarding stale validation", "generation", ticket.Generation)
		return opError("validate", "", ErrSuperseded)
	}
	c.tracker.Merge(results)

	returned := make(map[string]bool, len(results))
	for _, r := range results {
		returned[r.ID] = true
	}
	missing := 0
	for _, r := range c.store.Snapshot() {
		if !returned[r.ID] {
			missing++
		}
	}
	if missing > 0 {
		return opError("validate", "", fmt.Errorf("%w: %d of %d records not returned", ErrValidationPartial, missing, c.store.Len()))
	}
	return nil
}

// Search asks the gateway for matching records and projects them. The
// canonical store is not touched.
func (c *Controller) Search(ctx context.Context, q model.SearchQuery) ([]model.Entry, error) {
	c.mu.Lock()
	ticket := c.gens.issue(OpSearch)
	c.mu.Unlock()

	records, err := c.gw.Search(ctx, q)
	if err != nil {
		return nil, opError("search", "", classify(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gens.current(ticket) {
		return nil, opError("search", "", ErrSuperseded)
	}
	for i := range records {
		records[i].Valid = c.tracker.Get(records[i].ID)
	}
	return Build(records, c.order), nil
}

// Export writes every record through the gateway and returns the location.
func (c *Controller) Export(ctx context.Context) (string, error) {
	loc, err := c.gw.ExportAll(ctx)
	if err != nil {
		return "", opError("export", "", classify(err))
	}
	return loc, nil
}

// Import loads records from source through the gateway and refreshes.
func (c *Controller) Import(ctx context.Context, source string) ([]model.VariableRecord, error) {
	records, err := c.gw.ImportAll(ctx, source)
	if err != nil {
		return nil, opError("import", source, classify(err))
	}
	if err := c.Refresh(ctx); err != nil {
		return records, err
	}
	return records, nil
}

// Records returns the store with validity stamped in.
func (c *Controller) Records() []model.VariableRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stampedLocked()
}

// Record returns one stored record.
func (c *Controller) Record(id string) (model.VariableRecord, bool) {
	r, ok := c.store.Get(id)
	if !ok {
		return r, false
	}
	c.mu.Lock()
	r.Valid = c.tracker.Get(id)
	c.mu.Unlock()
	return r, true
}

// Projection builds the full projection of the current store.
func (c *Controller) Projection() []model.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Build(c.stampedLocked(), c.order)
}

// Visible builds the projection and filters it by the expansion state.
func (c *Controller) Visible() []model.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Visible(Build(c.stampedLocked(), c.order), c.expansion)
}

// Expansion returns a copy of the expansion state.
func (c *Controller) Expansion() ExpansionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expansion.Clone()
}

func (c *Controller) ToggleList(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expansion.ToggleList(id)
}

func (c *Controller) ToggleSection(scope model.Scope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expansion.ToggleSection(scope)
}

// SectionOrder returns the scope group order used by projections.
func (c *Controller) SectionOrder() []model.Scope {
	return append([]model.Scope(nil), c.order...)
}

// Validity returns the tracked state of id.
func (c *Controller) Validity(id string) model.Validity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Get(id)
}

// InvalidIDs lists stored records whose last validation failed, in store
// order. It is the default selection for deleting invalid variables.
func (c *Controller) InvalidIDs() []string {
	var ids []string
	for _, r := range c.InvalidRecords() {
		ids = append(ids, r.ID)
	}
	return ids
}

// InvalidRecords is InvalidIDs with the full records.
func (c *Controller) InvalidRecords() []model.VariableRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	invalid := make(map[string]bool)
	for _, id := range c.tracker.InvalidIDs() {
		invalid[id] = true
	}
	var out []model.VariableRecord
	for _, r := range c.store.Snapshot() {
		if invalid[r.ID] {
			r.Valid = model.ValidityFalse
			out = append(out, r)
		}
	}
	return out
}

func (c *Controller) stampedLocked() []model.VariableRecord {
	records := c.store.Snapshot()
	for i := range records {
		records[i].Valid = c.tracker.Get(records[i].ID)
	}
	return records
}
