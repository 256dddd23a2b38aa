package host

import (
	"time"

	"opineeo/survey-widget/internal/dom"
	"opineeo/survey-widget/internal/survey"
	"opineeo/survey-widget/internal/widget"
)

// Client to server message types.
const (
	TypeMount      = "mount"
	TypeEvent      = "event"
	TypeDestroy    = "destroy"
	TypeClose      = "close"
	TypeConnect    = "connect"
	TypeAttribute  = "attribute"
	TypeDisconnect = "disconnect"
	TypeProperty   = "property"
)

// Server to client message types.
const (
	TypeHello    = "hello"
	TypeMutation = "mutation"
	TypeError    = "error"
)

const (
	PropertySurveyData = "surveyData"
	PropertyCustomCSS  = "customCSS"
)

// MountConfig is the serialisable part of the options a page passes to
// initSurveyWidget. Callbacks stay in the browser and are driven by the
// complete and close events.
type MountConfig struct {
	Token         string         `json:"token"`
	SurveyID      string         `json:"surveyId"`
	UserID        string         `json:"userId"`
	ExtraInfo     string         `json:"extraInfo"`
	AutoClose     float64        `json:"autoClose" validate:"gte=0"`
	CustomCSS     string         `json:"customCSS" validate:"css_safe"`
	SurveyData    *survey.Survey `json:"surveyData"`
	Branding      bool           `json:"branding"`
	ResponseToken string         `json:"responseToken"`
}

// WidgetConfig converts the mount options; autoClose is in milliseconds.
func (c MountConfig) WidgetConfig() widget.Config {
	return widget.Config{
		Token:         c.Token,
		SurveyID:      c.SurveyID,
		UserID:        c.UserID,
		ExtraInfo:     c.ExtraInfo,
		AutoClose:     time.Duration(c.AutoClose * float64(time.Millisecond)),
		CustomCSS:     c.CustomCSS,
		SurveyData:    c.SurveyData,
		Branding:      c.Branding,
		ResponseToken: c.ResponseToken,
	}
}

type ClientMessage struct {
	Type        string            `json:"type" validate:"required,oneof=mount event destroy close connect attribute disconnect property"`
	ContainerID string            `json:"containerId,omitempty" validate:"max=128"`
	ElementID   string            `json:"elementId,omitempty" validate:"max=128"`
	Config      *MountConfig      `json:"config,omitempty"`
	Event       *dom.Event        `json:"event,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Name        string            `json:"name,omitempty"`
	Value       string            `json:"value,omitempty"`
	Removed     bool              `json:"removed,omitempty"`
	Survey      *survey.Survey    `json:"survey,omitempty"`
}

type ServerMessage struct {
	Type     string        `json:"type"`
	Page     string        `json:"page,omitempty"`
	Mutation *dom.Mutation `json:"mutation,omitempty"`
	Message  string        `json:"message,omitempty"`
}

func mutationMessage(m dom.Mutation) ServerMessage {
	return ServerMessage{Type: TypeMutation, Mutation: &m}
}
