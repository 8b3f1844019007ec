package model

import (
	"github.com/google/uuid"
)

// DirectoryUser is the read model served by the identity directory. The
// directory is the source of roles and of the display attributes from
// which snapshots are built.
type DirectoryUser struct {
	Base
	Role           Role   `db:"role" json:"role"`
	Name           string `db:"name" json:"name"`
	Email          string `db:"email" json:"email"`
	Specialization string `db:"specialization" json:"specialization,omitempty"`
	Location       string `db:"location" json:"location,omitempty"`
}

// ToSnapshot freezes the user's public attributes into a Snapshot.
func (u *DirectoryUser) ToSnapshot() Snapshot {
	return Snapshot{
		EntityID: u.ID,
		Role:     u.Role,
		Name:     u.Name,
		Profile: SnapshotProfile{
			Specialization: u.Specialization,
			Location:       u.Location,
		},
	}
}

// Actor is the authenticated caller of a workflow operation, extracted
// from the bearer token by the auth middleware.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
