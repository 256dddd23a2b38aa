package surveybuilder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"
	"opineeo/survey-widget/test/testdata"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type Builder struct {
	t *testing.T
}

func New(t *testing.T) *Builder {
	return &Builder{t: t}
}

// Create returns a valid survey. Without WithQuestions it holds a required
// star rating, a single choice with an other option and an optional long text.
func (b Builder) Create(opts ...Option) survey.Survey {
	p := &FactoryParams{
		ID: testdata.RandomID("sv"),
		Questions: []survey.Question{
			b.Question(survey.FormatStarRating, Required()),
			b.Question(survey.FormatSingleChoice, WithOther()),
			b.Question(survey.FormatLongText),
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	s := survey.Survey{
		ID:        p.ID,
		Questions: p.Questions,
		Style:     p.Style,
		Branding:  p.Branding,
	}
	require.NoError(b.t, survey.Validate(internal.NewValidator(), s))
	return s
}

// Question returns a question of the given format with a random title and,
// for choice formats, three options.
func (b Builder) Question(format survey.Format, opts ...QuestionOption) survey.Question {
	q := survey.Question{
		ID:          testdata.RandomID("q"),
		Title:       testdata.RandomQuestion(),
		Description: testdata.RandomDescription(),
		Format:      format,
	}
	if format == survey.FormatSingleChoice || format == survey.FormatMultipleChoice {
		for i := 1; i <= 3; i++ {
			q.Options = append(q.Options, survey.Option{ID: "opt-" + strconv.Itoa(i), Text: testdata.RandomWord()})
		}
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Answer returns one entry per answerable question, each valid for it.
func (b Builder) Answer(s survey.Survey) []survey.Entry {
	entries := make([]survey.Entry, 0, len(s.Questions))
	for _, q := range s.Questions {
		entry := survey.Entry{QuestionID: q.ID, QuestionTitle: q.Title, QuestionFormat: q.Format}

		switch q.Format {
		case survey.FormatYesNo:
			yes := testdata.RandomInt(0, 1) == 1
			entry.BooleanValue = &yes
			entry.TextValue = "No"
			if yes {
				entry.TextValue = "Yes"
			}
		case survey.FormatSingleChoice:
			o := q.Options[testdata.RandomInt(0, len(q.Options)-1)]
			entry.OptionID = o.ID
			entry.TextValue = o.Text
			entry.IsOther = o.IsOther
		case survey.FormatMultipleChoice:
			o := q.Options[0]
			entry.Answers = []survey.Answer{{OptionID: o.ID, TextValue: o.Text, IsOther: o.IsOther}}
		case survey.FormatStarRating:
			n := testdata.RandomInt(survey.MinStars, survey.MaxStars)
			entry.NumberValue = &n
			entry.TextValue = strconv.Itoa(n)
		case survey.FormatLongText:
			entry.TextValue = testdata.RandomDescription()
		default:
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// WriteCatalog stores each survey as <id>.yaml in dir.
func (b Builder) WriteCatalog(dir string, surveys ...survey.Survey) {
	for _, s := range surveys {
		data, err := yaml.Marshal(s)
		require.NoError(b.t, err)

		path := filepath.Join(dir, fmt.Sprintf("%s.yaml", s.ID))
		require.NoError(b.t, os.WriteFile(path, data, 0o600))
	}
}
