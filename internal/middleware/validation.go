package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/careflow-api/internal/model"
)

// RegisterValidators installs the domain validators on gin's binding
// engine and makes validation errors report json field names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("referral_type", validReferralType); err != nil {
		return err
	}
	return v.RegisterValidation("referral_priority", validReferralPriority)
}

func validReferralType(fl validator.FieldLevel) bool {
	switch model.ReferralType(fl.Field().String()) {
	case model.ReferralTypeInterDepartmental,
		model.ReferralTypeDoctorToDoctor,
		model.ReferralTypeDoctorToPharmacy,
		model.ReferralTypeLabToLab:
		return true
	}
	return false
}

func validReferralPriority(fl validator.FieldLevel) bool {
	switch model.ReferralPriority(fl.Field().String()) {
	case model.ReferralPriorityLow,
		model.ReferralPriorityMedium,
		model.ReferralPriorityHigh,
		model.ReferralPriorityUrgent:
		return true
	}
	return false
}
