package clinic

import (
	"time"

	"github.com/google/uuid"
)

// entity carries the identity and audit timestamps shared by every
// aggregate. updatedAt doubles as the optimistic-concurrency token, so it
// is never writable from outside the aggregate's own transition methods.
type entity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// newEntity builds the identity block for a fresh aggregate. A zero id is
// replaced with a random one; an updatedAt earlier than createdAt is
// clamped up so the token is always monotonic from birth.
func newEntity(id uuid.UUID, createdAt, updatedAt time.Time) entity {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() || updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}
	return entity{id: id, createdAt: createdAt, updatedAt: updatedAt}
}

func (e *entity) ID() uuid.UUID        { return e.id }
func (e *entity) CreatedAt() time.Time { return e.createdAt }
func (e *entity) UpdatedAt() time.Time { return e.updatedAt }

func (e *entity) touch(at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	e.updatedAt = at
}
