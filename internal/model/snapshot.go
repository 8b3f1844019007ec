package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies the kind of actor in the platform
type Role string

const (
	RolePatient  Role = "PATIENT"
	RoleHospital Role = "HOSPITAL"
	RoleDoctor   Role = "DOCTOR"
	RoleLab      Role = "LAB"
	RolePharmacy Role = "PHARMACY"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleHospital, RoleDoctor, RoleLab, RolePharmacy, RoleAdmin:
		return true
	}
	return false
}

// SnapshotProfile carries the role-specific display attributes of a
// snapshot. Which fields are meaningful is determined by Role alone:
// Specialization for doctors, Location for hospitals, labs and
// pharmacies. Presence of a field is never used to infer the role.
type SnapshotProfile struct {
	Specialization string `json:"specialization,omitempty"`
	Location       string `json:"location,omitempty"`
}

// Snapshot is an immutable copy of an actor's public attributes taken
// when a workflow entity is created. It is never re-derived from the
// identity directory afterwards, so later changes to the actor cannot
// rewrite history.
type Snapshot struct {
	EntityID uuid.UUID       `json:"entity_id"`
	Role     Role            `json:"role"`
	Name     string          `json:"name"`
	Profile  SnapshotProfile `json:"profile"`
}

func (s Snapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Snapshot) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = Snapshot{}
		return nil
	}
	return fmt.Errorf("unsupported snapshot column type %T", src)
}
