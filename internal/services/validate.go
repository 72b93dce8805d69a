package services

import (
	"errors"
	"strings"

	"github.com/diewo77/theses-app/internal/apperr"
	"github.com/go-playground/validator/v10"
)

// validate is shared by all services; struct tags describe the input
// constraints and failures surface as apperr.Validation with per-field detail.
var validate = validator.New(validator.WithRequiredStructEnabled())

// checkInput runs struct validation and converts the result to the taxonomy.
func checkInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("requete_invalide", nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return apperr.Validation("champs_invalides", fields)
}
