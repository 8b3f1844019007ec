package referral

import (
	"github.com/jwalitptl/careflow-api/internal/model"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

// compatibility maps source role → referral type → required target
// role. Anything not in the table is rejected before a referral is
// constructed, and re-checked at write time against the immutable
// snapshots.
var compatibility = map[model.Role]map[model.ReferralType]model.Role{
	model.RoleHospital: {
		model.ReferralTypeInterDepartmental: model.RoleDoctor,
	},
	model.RoleDoctor: {
		model.ReferralTypeDoctorToDoctor:   model.RoleDoctor,
		model.ReferralTypeDoctorToPharmacy: model.RolePharmacy,
	},
	model.RoleLab: {
		model.ReferralTypeLabToLab: model.RoleLab,
	},
}

// ValidateCompatibility checks the (source role, referral type, target
// role) triple against the fixed table.
func ValidateCompatibility(source model.Role, referralType model.ReferralType, target model.Role) error {
	allowed, ok := compatibility[source]
	if !ok {
		return apperrors.NewValidationf("role %s cannot create referrals", source)
	}

	requiredTarget, ok := allowed[referralType]
	if !ok {
		return apperrors.NewValidationf("role %s cannot create %s referrals", source, referralType)
	}

	if target != requiredTarget {
		return apperrors.NewValidationf("%s referrals must target a %s, got %s", referralType, requiredTarget, target)
	}
	return nil
}
