package internal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NYCU-SDC/summer/pkg/problem"
)

type ErrSubmissionInvalid struct {
	Problems []struct {
		QuestionID string
		Message    string
	}
}

func (s ErrSubmissionInvalid) Error() string {
	parts := make([]string, len(s.Problems))
	for i, p := range s.Problems {
		parts[i] = fmt.Sprintf("Question: %s, Problem: %s", p.QuestionID, p.Message)
	}

	return "submission is invalid: " + strings.Join(parts, "; ")
}

func (s ErrSubmissionInvalid) Unwrap() error {
	return ErrValidationFailed
}

var (
	// Auth Errors
	ErrMissingAuthHeader       = errors.New("missing access token")
	ErrInvalidAuthHeaderFormat = errors.New("invalid access token")
	ErrUnauthorizedError       = errors.New("unauthorized error")
	ErrInvalidResponseToken    = errors.New("invalid response token")
	ErrInternalServerError     = errors.New("internal server error")
	ErrNotFound                = errors.New("not found")

	// Request Errors
	ErrInvalidRequestBody = errors.New("invalid request body")
	ErrMissingSurveyID    = errors.New("missing survey id")
	ErrValidationFailed   = errors.New("validation failed")

	// Survey Errors
	ErrSurveyNotFound       = errors.New("survey not found")
	ErrSurveyDefinition     = errors.New("survey definition is invalid")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrOptionNotFound       = errors.New("option not found")
	ErrUnsupportedFormat    = errors.New("unsupported question format")
	ErrUnsupportedAction    = errors.New("action is not supported by this question format")
	ErrQuestionRequired     = errors.New("question is required but not answered")
	ErrRatingOutOfRange     = errors.New("rating is out of range")
	ErrSurveyCatalogBroken  = errors.New("survey catalog could not be loaded")
	ErrSurveyIDMismatch     = errors.New("response token does not belong to this survey")
	ErrDuplicateSubmission  = errors.New("response token has already been used")
	ErrDuplicateQuestionID  = errors.New("duplicate question id")
	ErrChoiceWithoutOptions = errors.New("choice question has no options")

	// Widget Errors
	ErrContainerNotFound = errors.New("container not found")
	ErrWidgetNotMounted  = errors.New("widget is not mounted")
	ErrPageNotFound      = errors.New("page not found")
	ErrUnknownMessage    = errors.New("unknown message type")

	// Storage Errors
	ErrDatabaseError = errors.New("database error")
	ErrExportFailed  = errors.New("failed to export responses")
)

func NewProblemWriter() *problem.HttpWriter {
	return problem.NewWithMapping(ErrorHandler)
}

func ErrorHandler(err error) problem.Problem {
	switch {
	// Auth Errors
	case errors.Is(err, ErrMissingAuthHeader):
		return problem.NewUnauthorizedProblem("missing access token")
	case errors.Is(err, ErrInvalidAuthHeaderFormat):
		return problem.NewUnauthorizedProblem("invalid access token")
	case errors.Is(err, ErrUnauthorizedError):
		return problem.NewUnauthorizedProblem("unauthorized")
	case errors.Is(err, ErrInvalidResponseToken):
		return problem.NewUnauthorizedProblem("invalid response token")
	case errors.Is(err, ErrInternalServerError):
		return problem.NewInternalServerProblem("internal server error")
	case errors.Is(err, ErrNotFound):
		return problem.NewNotFoundProblem("not found")

	// Request Errors
	case errors.Is(err, ErrInvalidRequestBody):
		return problem.NewBadRequestProblem("invalid request body")
	case errors.Is(err, ErrMissingSurveyID):
		return problem.NewBadRequestProblem("surveyId is required")

	// Survey Errors
	case errors.Is(err, ErrSurveyNotFound):
		return problem.NewNotFoundProblem("survey not found")
	case errors.Is(err, ErrSurveyIDMismatch):
		return problem.NewForbiddenProblem("response token does not belong to this survey")
	case errors.Is(err, ErrDuplicateSubmission):
		return problem.NewBadRequestProblem("response token has already been used")
	case errors.Is(err, ErrQuestionNotFound):
		return problem.NewValidateProblem("question not found")
	case errors.Is(err, ErrOptionNotFound):
		return problem.NewValidateProblem("option not found")
	case errors.Is(err, ErrUnsupportedFormat):
		return problem.NewValidateProblem("unsupported question format")
	case errors.Is(err, ErrQuestionRequired):
		return problem.NewValidateProblem("question is required but not answered")
	case errors.Is(err, ErrRatingOutOfRange):
		return problem.NewValidateProblem("rating must be between 1 and 5")
	case errors.Is(err, ErrSurveyDefinition):
		return problem.NewValidateProblem(err.Error())
	case errors.As(err, &ErrSubmissionInvalid{}):
		return problem.NewValidateProblem(err.Error())

	// Validation Errors
	case errors.Is(err, ErrValidationFailed):
		return problem.NewValidateProblem(err.Error())

	// Widget Errors
	case errors.Is(err, ErrPageNotFound):
		return problem.NewNotFoundProblem("page not found")

	// Storage Errors
	case errors.Is(err, ErrDatabaseError):
		return problem.NewInternalServerProblem("database error")
	case errors.Is(err, ErrExportFailed):
		return problem.NewInternalServerProblem("failed to export responses")
	}
	return problem.Problem{}
}
