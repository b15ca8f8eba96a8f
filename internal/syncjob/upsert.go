package syncjob

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/iot-portal/internal/infrastructure/config"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
)

// Entity is a locally mirrored registry record.
type Entity interface {
	GetID() string
	GetVersion() int64
}

// Store is the persistence contract a job needs for one entity type.
// GetByID must return an error matching database.ErrNotFound when the
// entity does not exist.
type Store[E Entity] interface {
	GetByID(ctx context.Context, id string) (E, error)
	Insert(ctx context.Context, e E) error
	Update(ctx context.Context, e E) error
}

// Guard decides whether an existing row may be overwritten by incoming.
type Guard func(existing, incoming Entity) bool

// NewerVersion allows an overwrite only when the incoming version is
// strictly greater than the stored one.
func NewerVersion(existing, incoming Entity) bool {
	return incoming.GetVersion() > existing.GetVersion()
}

// InsertOnly never overwrites an existing row.
func InsertOnly(Entity, Entity) bool {
	return false
}

// ErrUnknownGuard is returned by ParseGuard for an unrecognised name.
var ErrUnknownGuard = errors.New("syncjob: unknown version guard")

// ParseGuard returns the Guard for a sync.concentrator_guard value; empty
// selects NewerVersion.
func ParseGuard(name string) (Guard, error) {
	switch name {
	case config.GuardNewer, "":
		return NewerVersion, nil
	case config.GuardInsertOnly:
		return InsertOnly, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGuard, name)
	}
}

// Outcome is what Upsert did with one entity.
type Outcome int

// Upsert outcomes.
const (
	Unchanged Outcome = iota
	Inserted
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Upsert inserts incoming when no row with its ID exists, otherwise updates
// the row if guard allows it.
func Upsert[E Entity](ctx context.Context, store Store[E], incoming E, guard Guard) (Outcome, error) {
	existing, err := store.GetByID(ctx, incoming.GetID())
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return Unchanged, fmt.Errorf("loading %s: %w", incoming.GetID(), err)
		}
		if err := store.Insert(ctx, incoming); err != nil {
			return Unchanged, fmt.Errorf("inserting %s: %w", incoming.GetID(), err)
		}
		return Inserted, nil
	}

	if !guard(existing, incoming) {
		return Unchanged, nil
	}
	if err := store.Update(ctx, incoming); err != nil {
		return Unchanged, fmt.Errorf("updating %s: %w", incoming.GetID(), err)
	}
	return Updated, nil
}

// upsertAll applies Upsert to every entity in order, tallying into res.
func upsertAll[E Entity](ctx context.Context, store Store[E], entities []E, guard Guard, res *Result) error {
	for _, e := range entities {
		outcome, err := Upsert(ctx, store, e, guard)
		if err != nil {
			return err
		}
		res.count(outcome)
	}
	return nil
}
