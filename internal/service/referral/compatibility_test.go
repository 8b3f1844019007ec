package referral

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/careflow-api/internal/model"
)

var allRoles = []model.Role{
	model.RolePatient, model.RoleHospital, model.RoleDoctor,
	model.RoleLab, model.RolePharmacy, model.RoleAdmin,
}

var allTypes = []model.ReferralType{
	model.ReferralTypeInterDepartmental,
	model.ReferralTypeDoctorToDoctor,
	model.ReferralTypeDoctorToPharmacy,
	model.ReferralTypeLabToLab,
}

func TestCompatibilityAllowedTriples(t *testing.T) {
	allowed := []struct {
		source model.Role
		typ    model.ReferralType
		target model.Role
	}{
		{model.RoleHospital, model.ReferralTypeInterDepartmental, model.RoleDoctor},
		{model.RoleDoctor, model.ReferralTypeDoctorToDoctor, model.RoleDoctor},
		{model.RoleDoctor, model.ReferralTypeDoctorToPharmacy, model.RolePharmacy},
		{model.RoleLab, model.ReferralTypeLabToLab, model.RoleLab},
	}

	for _, tc := range allowed {
		assert.NoError(t, ValidateCompatibility(tc.source, tc.typ, tc.target),
			"(%s, %s, %s) should be allowed", tc.source, tc.typ, tc.target)
	}
}

// The table is total: every triple outside the four allowed ones fails.
func TestCompatibilityRejectsEverythingElse(t *testing.T) {
	isAllowed := func(source model.Role, typ model.ReferralType, target model.Role) bool {
		switch {
		case source == model.RoleHospital && typ == model.ReferralTypeInterDepartmental && target == model.RoleDoctor:
			return true
		case source == model.RoleDoctor && typ == model.ReferralTypeDoctorToDoctor && target == model.RoleDoctor:
			return true
		case source == model.RoleDoctor && typ == model.ReferralTypeDoctorToPharmacy && target == model.RolePharmacy:
			return true
		case source == model.RoleLab && typ == model.ReferralTypeLabToLab && target == model.RoleLab:
			return true
		}
		return false
	}

	for _, source := range allRoles {
		for _, typ := range allTypes {
			for _, target := range allRoles {
				if isAllowed(source, typ, target) {
					continue
				}
				assert.Error(t, ValidateCompatibility(source, typ, target),
					"(%s, %s, %s) should be rejected", source, typ, target)
			}
		}
	}
}

func TestCompatibilityDoctorToPharmacyTargetingDoctorFails(t *testing.T) {
	err := ValidateCompatibility(model.RoleDoctor, model.ReferralTypeDoctorToPharmacy, model.RoleDoctor)
	assert.Error(t, err)

	err = ValidateCompatibility(model.RoleDoctor, model.ReferralTypeDoctorToPharmacy, model.RolePharmacy)
	assert.NoError(t, err)
}
