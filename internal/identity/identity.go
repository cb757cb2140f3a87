// Package identity generates synthetic core.WorkItem identities for
// examples and tests that don't have a natural domain identity (a URL,
// a file path) to hand the pool.
package identity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Swind/go-task-runner/core"
)

// Item is a core.WorkItem backed by a randomly generated UUID.
type Item struct {
	id string
}

var _ core.WorkItem = Item{}

// New returns an Item with a fresh UUIDv7 identity.
func New() Item {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock/rand source is broken;
		// fall back to v4 rather than propagating a constructor error
		// through every caller.
		return Item{id: uuid.NewString()}
	}
	return Item{id: id.String()}
}

// Identity implements core.WorkItem.
func (i Item) Identity() string { return i.id }

func (i Item) String() string { return fmt.Sprintf("identity.Item(%s)", i.id) }
