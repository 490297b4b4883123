// Package ids mints opaque identifiers for entities the store does not
// assign a sequential integer to, grounded on the teacher's use of
// github.com/google/uuid for bridge-side identifiers (pkg/connector,
// memory_index.go's session generation ids).
package ids

import "github.com/google/uuid"

// NewGameID mints an opaque game id.
func NewGameID() string { return "game_" + uuid.NewString() }

// NewBranchID mints an opaque branch id.
func NewBranchID() string { return "branch_" + uuid.NewString() }

// NewTagID mints an opaque tag id.
func NewTagID() string { return "tag_" + uuid.NewString() }
