package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// Guide numbers follow the payer convention: an uppercase alphanumeric
	// identifier of 5 to 30 characters, dashes allowed inside.
	guideNumberPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{3,28}[A-Z0-9]$`)

	// Procedure codes are numeric identifiers from the coding tables, 8 to
	// 10 digits (TUSS and SIGTAP both fit here).
	procedureCodePattern = regexp.MustCompile(`^[0-9]{8,10}$`)
)

// RegisterValidators installs the domain validators used in binding tags.
// Called once at startup before the router serves traffic.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("guide_number", validGuideNumber); err != nil {
		return err
	}
	return v.RegisterValidation("procedure_code", validProcedureCode)
}

func validGuideNumber(fl validator.FieldLevel) bool {
	return guideNumberPattern.MatchString(fl.Field().String())
}

func validProcedureCode(fl validator.FieldLevel) bool {
	return procedureCodePattern.MatchString(fl.Field().String())
}
