package syncjob

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/iot-portal/internal/infrastructure/config"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
)

type item struct {
	id      string
	version int64
	value   string
}

func (i *item) GetID() string     { return i.id }
func (i *item) GetVersion() int64 { return i.version }

// memStore is an in-memory Store with injectable failures.
type memStore struct {
	rows      map[string]*item
	getErr    error
	insertErr error
	updateErr error
	inserts   int
	updates   int
}

func newMemStore() *memStore { return &memStore{rows: make(map[string]*item)} }

func (s *memStore) GetByID(_ context.Context, id string) (*item, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	row, ok := s.rows[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *memStore) Insert(_ context.Context, i *item) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts++
	cp := *i
	s.rows[i.id] = &cp
	return nil
}

func (s *memStore) Update(_ context.Context, i *item) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates++
	cp := *i
	s.rows[i.id] = &cp
	return nil
}

func TestUpsert(t *testing.T) {
	tests := []struct {
		name      string
		existing  *item
		incoming  *item
		guard     Guard
		want      Outcome
		wantValue string
	}{
		{"insert when absent", nil, &item{"a", 1, "new"}, NewerVersion, Inserted, "new"},
		{"newer version overwrites", &item{"a", 5, "old"}, &item{"a", 6, "new"}, NewerVersion, Updated, "new"},
		{"equal version unchanged", &item{"a", 5, "old"}, &item{"a", 5, "new"}, NewerVersion, Unchanged, "old"},
		{"older version unchanged", &item{"a", 5, "old"}, &item{"a", 4, "new"}, NewerVersion, Unchanged, "old"},
		{"insert only keeps newer existing", &item{"a", 1, "old"}, &item{"a", 9, "new"}, InsertOnly, Unchanged, "old"},
		{"insert only still inserts", nil, &item{"a", 1, "new"}, InsertOnly, Inserted, "new"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.existing != nil {
				store.rows[tt.existing.id] = tt.existing
			}

			got, err := Upsert[*item](context.Background(), store, tt.incoming, tt.guard)
			if err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Upsert() = %v, want %v", got, tt.want)
			}
			if v := store.rows["a"].value; v != tt.wantValue {
				t.Errorf("stored value = %q, want %q", v, tt.wantValue)
			}
		})
	}
}

func TestUpsert_Errors(t *testing.T) {
	boom := errors.New("disk full")
	ctx := context.Background()

	t.Run("get error is not treated as missing", func(t *testing.T) {
		store := newMemStore()
		store.getErr = boom
		if _, err := Upsert[*item](ctx, store, &item{id: "a"}, NewerVersion); !errors.Is(err, boom) {
			t.Errorf("Upsert() error = %v, want %v", err, boom)
		}
		if store.inserts != 0 {
			t.Errorf("inserts = %d, want 0", store.inserts)
		}
	})

	t.Run("insert error", func(t *testing.T) {
		store := newMemStore()
		store.insertErr = boom
		if _, err := Upsert[*item](ctx, store, &item{id: "a"}, NewerVersion); !errors.Is(err, boom) {
			t.Errorf("Upsert() error = %v, want %v", err, boom)
		}
	})

	t.Run("update error", func(t *testing.T) {
		store := newMemStore()
		store.rows["a"] = &item{id: "a", version: 1}
		store.updateErr = boom
		if _, err := Upsert[*item](ctx, store, &item{id: "a", version: 2}, NewerVersion); !errors.Is(err, boom) {
			t.Errorf("Upsert() error = %v, want %v", err, boom)
		}
	})
}

func TestParseGuard(t *testing.T) {
	for _, name := range []string{"", config.GuardNewer, config.GuardInsertOnly} {
		if g, err := ParseGuard(name); err != nil || g == nil {
			t.Errorf("ParseGuard(%q) = %v, %v", name, g, err)
		}
	}
	if _, err := ParseGuard("always"); !errors.Is(err, ErrUnknownGuard) {
		t.Errorf("ParseGuard(always) error = %v, want %v", err, ErrUnknownGuard)
	}

	g, _ := ParseGuard(config.GuardInsertOnly)
	if g(&item{version: 1}, &item{version: 2}) {
		t.Error("insert_only guard allowed an overwrite")
	}
}

func TestOutcomeString(t *testing.T) {
	if Inserted.String() != "inserted" || Updated.String() != "updated" || Unchanged.String() != "unchanged" {
		t.Error("Outcome.String() mismatch")
	}
}
