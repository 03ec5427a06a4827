package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/campus-events/attendance-service/internal/models"
)

var rollnoPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Validator wraps go-playground/validator with the domain rules shared by
// handlers and services.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with all custom rules registered.
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerRules()

	return v
}

// Validate validates any tagged struct and flattens failures into one error.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if errs, ok := err.(validator.ValidationErrors); ok {
		invalid = errs
	} else {
		return err
	}

	messages := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		messages = append(messages, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

func (v *Validator) registerRules() {
	// faculty: one of the registration-time program codes. Only applied on
	// DTOs that opt in; the scan path deliberately accepts any non-empty
	// faculty string (the QR was generated by this system).
	_ = v.validate.RegisterValidation("faculty", func(fl validator.FieldLevel) bool {
		return models.IsValidFaculty(models.Faculty(fl.Field().String()))
	})

	// rollno: human-typed alphanumeric identifier.
	_ = v.validate.RegisterValidation("rollno", func(fl validator.FieldLevel) bool {
		return rollnoPattern.MatchString(fl.Field().String())
	})

	// scan_date: calendar day in YYYY-MM-DD form.
	_ = v.validate.RegisterValidation("scan_date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.ScanDateLayout, fl.Field().String())
		return err == nil
	})
}
