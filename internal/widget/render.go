package widget

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"opineeo/survey-widget/internal/survey"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var (
	templates = template.Must(template.ParseFS(templateFS, "templates/*.gohtml"))
	sanitizer = bluemonday.UGCPolicy()
)

const (
	kindRadio     = "radio"
	kindCheckbox  = "checkbox"
	kindStars     = "stars"
	kindText      = "text"
	kindStatement = "statement"
)

// View is everything the renderer needs; Render is a pure function of it.
type View struct {
	Loading      bool
	Unavailable  bool
	Error        string
	HasQuestions bool
	Completed    bool
	Done         bool
	Submitting   bool
	ShowPrev     bool
	IsLast       bool
	Branding     bool
	EnterClass   string
	Card         CardView
}

type CardView struct {
	ID              string
	Title           string
	Required        bool
	ShowDescription bool
	Description     template.HTML
	Kind            string

	Choices   []ChoiceView
	ShowOther bool
	OtherText string

	Stars     []StarView
	Text      string
	Statement template.HTML
}

type ChoiceView struct {
	ID      string
	Text    string
	Checked bool
	IsOther bool
}

type StarView struct {
	Value    int
	Selected bool
}

// Render produces the widget markup for v.
func Render(v View) (string, error) {
	var b strings.Builder
	err := templates.ExecuteTemplate(&b, "widget", v)
	if err != nil {
		return "", fmt.Errorf("render widget: %w", err)
	}
	return b.String(), nil
}

// RenderCard produces the markup of a single question card.
func RenderCard(c CardView) (string, error) {
	var b strings.Builder
	err := templates.ExecuteTemplate(&b, "card", c)
	if err != nil {
		return "", fmt.Errorf("render card: %w", err)
	}
	return b.String(), nil
}

// NewCardView resolves a question and its current answer into render data.
func NewCardView(q survey.Question, resp *survey.Response, otherText string) CardView {
	card := CardView{
		ID:              q.ID,
		Title:           q.Title,
		Required:        q.Required,
		ShowDescription: q.Description != "" && q.Format != survey.FormatStatement,
		Description:     sanitize(q.Description),
		OtherText:       otherText,
	}

	answerable, err := survey.NewAnswerable(q)
	if err != nil {
		return card
	}

	switch a := answerable.(type) {
	case survey.YesNo:
		card.Kind = kindRadio
		picked := a.Picked(resp)
		for _, c := range a.Choices() {
			card.Choices = append(card.Choices, ChoiceView{ID: c.ID, Text: c.Text, Checked: c.ID == picked})
		}
	case survey.SingleChoice:
		card.Kind = kindRadio
		for _, o := range a.Options {
			checked := resp != nil && resp.OptionID == o.ID
			card.Choices = append(card.Choices, ChoiceView{ID: o.ID, Text: o.Text, Checked: checked, IsOther: o.IsOther})
			if o.IsOther && checked {
				card.ShowOther = true
			}
		}
	case survey.MultiChoice:
		card.Kind = kindCheckbox
		var selected []string
		if resp != nil {
			selected = resp.SelectedOptionIDs()
		}
		card.ShowOther = a.HasOther(selected)
		for _, o := range a.Options {
			checked := resp != nil && resp.Selected(o.ID)
			card.Choices = append(card.Choices, ChoiceView{ID: o.ID, Text: o.Text, Checked: checked, IsOther: o.IsOther})
		}
	case survey.StarRating:
		card.Kind = kindStars
		value := a.Value(resp)
		for _, k := range a.Stars() {
			card.Stars = append(card.Stars, StarView{Value: k, Selected: k <= value})
		}
	case survey.LongText:
		card.Kind = kindText
		card.Text = a.Value(resp)
	case survey.Statement:
		card.Kind = kindStatement
		card.Statement = sanitize(q.Description)
	}

	return card
}

func sanitize(s string) template.HTML {
	return template.HTML(sanitizer.Sanitize(s))
}
