package postgres

import (
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator implements ports.IDGenerator. ULIDs sort by creation time,
// which keeps the entry log's id order aligned with append order.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// NewEntryID generates a new ULID for a ledger entry.
func (g *ULIDGenerator) NewEntryID() string {
	return ulid.Make().String()
}
