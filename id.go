package stategraph

import "github.com/xraph/stategraph/id"

// ID is the primary identifier type for all stategraph entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
