package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"envman/internal/model"
)

type updateCall struct {
	ID    string
	Name  string
	Value string
	Scope model.Scope
}

// fakeGateway is an in-memory Gateway that records the writes it receives.
type fakeGateway struct {
	mu           sync.Mutex
	records      []model.VariableRecord
	updates      []updateCall
	deletes      []string
	failUpdate   error
	failDelete   map[string]error
	validation   []model.ValidationResult
	failList     error
	listHook     func()
	validateHook func()
}

func newFakeGateway(records ...model.VariableRecord) *fakeGateway {
	return &fakeGateway{records: records, failDelete: make(map[string]error)}
}

func (f *fakeGateway) setRecords(records ...model.VariableRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func (f *fakeGateway) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]updateCall(nil), f.updates...)
}

func (f *fakeGateway) List(ctx context.Context) ([]model.VariableRecord, error) {
	f.mu.Lock()
	out := append([]model.VariableRecord(nil), f.records...)
	err := f.failList
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, err
}

func (f *fakeGateway) Create(ctx context.Context, name, value string, scope model.Scope, note *string) (model.VariableRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := model.VariableRecord{ID: fmt.Sprintf("id-%d", len(f.records)+1), Name: name, Value: value, Scope: scope, Note: note}
	f.records = append(f.records, r)
	return r, nil
}

func (f *fakeGateway) Update(ctx context.Context, id, name, value string, scope model.Scope, note *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	for i := range f.records {
		if f.records[i].ID == id {
			f.updates = append(f.updates, updateCall{ID: id, Name: name, Value: value, Scope: scope})
			f.records[i].Name = name
			f.records[i].Value = value
			f.records[i].Scope = scope
			f.records[i].Note = note
			return nil
		}
	}
	return fmt.Errorf("update %s: %w", id, ErrNotFound)
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failDelete[id]; err != nil {
		return err
	}
	for i := range f.records {
		if f.records[i].ID == id {
			f.deletes = append(f.deletes, id)
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: %w", id, ErrNotFound)
}

func (f *fakeGateway) ValidateAll(ctx context.Context) ([]model.ValidationResult, error) {
	f.mu.Lock()
	out := append([]model.ValidationResult(nil), f.validation...)
	hook := f.validateHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeGateway) setValidation(results ...model.ValidationResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validation = results
}

func (f *fakeGateway) Search(ctx context.Context, q model.SearchQuery) ([]model.VariableRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.VariableRecord
	for _, r := range f.records {
		if strings.Contains(strings.ToLower(r.Name), strings.ToLower(q.NameKeyword)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGateway) ExportAll(ctx context.Context) (string, error) {
	return "", errors.New("export disabled")
}

func (f *fakeGateway) ImportAll(ctx context.Context, source string) ([]model.VariableRecord, error) {
	r, err := f.Create(ctx, "IMPORTED", source, model.ScopeUser, nil)
	if err != nil {
		return nil, err
	}
	return []model.VariableRecord{r}, nil
}

func rec(id, name, value string, scope model.Scope) model.VariableRecord {
	return model.VariableRecord{ID: id, Name: name, Value: value, Scope: scope}
}
