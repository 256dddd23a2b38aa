package survey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"opineeo/survey-widget/internal"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Decode parses a survey definition. JSON is recognised by a leading '{',
// anything else is read as YAML.
func Decode(v *validator.Validate, data []byte) (Survey, error) {
	var s Survey

	trimmedData := bytes.TrimSpace(data)
	if len(trimmedData) == 0 {
		return Survey{}, fmt.Errorf("%w: empty document", internal.ErrSurveyDefinition)
	}

	if trimmedData[0] == '{' {
		err := json.Unmarshal(trimmedData, &s)
		if err != nil {
			return Survey{}, fmt.Errorf("%w: %v", internal.ErrSurveyDefinition, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(trimmedData))
		dec.KnownFields(true)
		err := dec.Decode(&s)
		if err != nil {
			return Survey{}, fmt.Errorf("%w: %v", internal.ErrSurveyDefinition, err)
		}
	}

	err := Validate(v, s)
	if err != nil {
		return Survey{}, err
	}

	return s, nil
}

// Validate checks struct tags, question id uniqueness and that every question
// can be turned into an Answerable.
func Validate(v *validator.Validate, s Survey) error {
	err := internal.ValidateStruct(v, s)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			return fmt.Errorf("%w: field %s failed on %q", internal.ErrSurveyDefinition, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", internal.ErrSurveyDefinition, err)
	}

	err = s.CheckUnique()
	if err != nil {
		return err
	}

	for _, q := range s.Questions {
		_, err := NewAnswerable(q)
		if err != nil {
			return err
		}
	}

	return nil
}

// ValidateStructure is the lenient check for surveys received from the survey
// API. Question ids must be present and unique and the style must be safe to
// embed; formats are not checked, unknown ones render a fallback card.
func ValidateStructure(v *validator.Validate, s Survey) error {
	for i, q := range s.Questions {
		if q.ID == "" {
			return ErrInvalidDefinition{QuestionID: fmt.Sprintf("#%d", i), Message: "question id is required"}
		}
	}

	err := s.CheckUnique()
	if err != nil {
		return err
	}

	err = v.Var(s.Style, "css_safe")
	if err != nil {
		return fmt.Errorf("%w: style failed on %q", internal.ErrSurveyDefinition, "css_safe")
	}

	return nil
}
