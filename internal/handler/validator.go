package handler

import (
    "errors"
    "reflect"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"

    "github.com/kututa/railway-booking/internal/model"
    "github.com/kututa/railway-booking/internal/mpesa"
    "github.com/kututa/railway-booking/internal/service"
)

// Validator adapts go-playground/validator to echo.Validator.  Failures
// are reported as *service.ValidationError naming the JSON field.
type Validator struct {
    v *validator.Validate
}

// NewValidator registers the travel_date (YYYY-MM-DD) and ke_phone
// (Kenyan mobile number) rules.
func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    _ = v.RegisterValidation("travel_date", func(fl validator.FieldLevel) bool {
        _, err := time.Parse(model.DateLayout, fl.Field().String())
        return err == nil
    })
    _ = v.RegisterValidation("ke_phone", func(fl validator.FieldLevel) bool {
        _, err := mpesa.NormalizePhone(fl.Field().String())
        return err == nil
    })
    return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
    err := cv.v.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) || len(verrs) == 0 {
        return &service.ValidationError{Message: err.Error()}
    }
    fe := verrs[0]
    return &service.ValidationError{Field: fe.Field(), Message: ruleMessage(fe)}
}

func ruleMessage(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return "is required"
    case "travel_date":
        return "must be a date in YYYY-MM-DD format"
    case "ke_phone":
        return "must be a Kenyan mobile number"
    case "email":
        return "must be a valid email address"
    case "max":
        return "is too long"
    }
    return "is invalid"
}
