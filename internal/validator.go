package internal

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var dottedPathRe = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

func NewValidator() *validator.Validate {
	v := validator.New()

	// Custom CSS ends up inside a <style> element, it must not be able to close it.
	_ = v.RegisterValidation("css_safe", func(fl validator.FieldLevel) bool {
		return !strings.Contains(strings.ToLower(fl.Field().String()), "</style")
	})

	_ = v.RegisterValidation("dotted_path", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return dottedPathRe.MatchString(value)
	})

	return v
}

func ValidateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err != nil {
		return err
	}
	return nil
}
