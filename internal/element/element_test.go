package element

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/clock"
	"opineeo/survey-widget/internal/dom"
	"opineeo/survey-widget/internal/survey"
	"opineeo/survey-widget/internal/widget"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const statementSurvey = `{"id": "s1", "questions": [{"id": "q1", "title": "Thanks for visiting", "format": "STATEMENT"}]}`

type fixture struct {
	page     *dom.Page
	clock    *clock.Fake
	registry *Registry
	element  *Element
	configs  []widget.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	page := dom.NewPage()
	_, err := page.Append("", TagName, "el-1")
	require.NoError(t, err)

	f := &fixture{
		page:     page,
		clock:    clock.NewFake(time.Unix(0, 0)),
		registry: NewRegistry(internal.NewValidator()),
	}
	factory := func(cfg widget.Config) *widget.Widget {
		f.configs = append(f.configs, cfg)
		return widget.New(page, cfg, widget.WithClock(f.clock))
	}
	f.element = New(zap.NewNop(), internal.NewValidator(), page, "el-1", f.registry, factory)
	return f
}

func (f *fixture) text(selector string) string {
	return f.page.Snapshot().Find("#" + f.element.ContainerID() + " " + selector).Text()
}

func TestElement_Connect(t *testing.T) {
	f := newFixture(t)
	assert.True(t, strings.HasPrefix(f.element.ContainerID(), "opn-"))

	require.NoError(t, f.element.Connect(context.Background()))

	parent := f.page.Snapshot().Find("#" + f.element.ContainerID()).Parent()
	id, _ := parent.Attr("id")
	assert.Equal(t, "el-1", id)
	assert.Contains(t, f.text(".cc"), "Survey not available")
	require.NotNil(t, f.element.Widget())
	assert.True(t, f.element.Widget().Snapshot().Mounted)
}

func TestElement_ConnectWithoutHost(t *testing.T) {
	page := dom.NewPage()
	e := New(zap.NewNop(), internal.NewValidator(), page, "missing", NewRegistry(internal.NewValidator()), func(cfg widget.Config) *widget.Widget {
		return widget.New(page, cfg)
	})

	err := e.Connect(context.Background())
	require.ErrorIs(t, err, internal.ErrContainerNotFound)
	assert.Nil(t, e.Widget())
}

func TestElement_AttributesRemount(t *testing.T) {
	f := newFixture(t)

	f.element.SetAttribute(context.Background(), AttrSurvey, statementSurvey)
	assert.Empty(t, f.configs, "attributes before connect do not mount")

	require.NoError(t, f.element.Connect(context.Background()))
	require.Len(t, f.configs, 1)
	assert.Equal(t, "Thanks for visiting", f.text(".qt"))
	first := f.element.Widget()

	f.element.SetAttribute(context.Background(), AttrUserID, "u-1")
	require.Len(t, f.configs, 2)
	assert.Equal(t, "u-1", f.configs[1].UserID)
	assert.NotSame(t, first, f.element.Widget())
	assert.False(t, first.Snapshot().Mounted)

	f.element.SetAttribute(context.Background(), "class", "big")
	assert.Len(t, f.configs, 2)

	f.element.RemoveAttribute(context.Background(), AttrUserID)
	require.Len(t, f.configs, 3)
	assert.Equal(t, "", f.configs[2].UserID)
}

func TestElement_Config(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.element.Connect(context.Background()))

	attrs := map[string]string{
		AttrSurveyID:  "s1",
		AttrToken:     "tok",
		AttrAutoClose: "1500",
		AttrUserID:    "u-1",
		AttrExtraInfo: "plan=pro",
		AttrCustomCSS: ".qt{color:red}",
	}
	for name, value := range attrs {
		f.element.SetAttribute(context.Background(), name, value)
	}

	cfg := f.configs[len(f.configs)-1]
	assert.Equal(t, "s1", cfg.SurveyID)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, 1500*time.Millisecond, cfg.AutoClose)
	assert.Equal(t, "u-1", cfg.UserID)
	assert.Equal(t, "plan=pro", cfg.ExtraInfo)
	assert.Equal(t, ".qt{color:red}", cfg.CustomCSS)
	assert.Nil(t, cfg.SurveyData)
}

func TestElement_FallbackProperties(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.element.Connect(context.Background()))

	fallback := &survey.Survey{ID: "fallback", Questions: []survey.Question{{ID: "q1", Title: "Fallback", Format: survey.FormatLongText}}}
	f.element.SetSurveyData(context.Background(), fallback)
	f.element.SetCustomCSS(context.Background(), ".qd{margin:0}")
	assert.Equal(t, "Fallback", f.text(".qt"))
	assert.Equal(t, ".qd{margin:0}", f.configs[len(f.configs)-1].CustomCSS)

	f.element.SetAttribute(context.Background(), AttrSurvey, statementSurvey)
	assert.Equal(t, "Thanks for visiting", f.text(".qt"))

	f.element.SetAttribute(context.Background(), AttrSurvey, `{"id": "broken", "questions": [{"id": "q1"}]}`)
	assert.Equal(t, "Fallback", f.text(".qt"))
}

func TestElement_CompleteAndClose(t *testing.T) {
	f := newFixture(t)

	var handled []string
	require.NoError(t, f.registry.Register("app.survey.done", func(detail any, elementID string) {
		payload, ok := detail.(survey.Payload)
		require.True(t, ok)
		handled = append(handled, "complete:"+payload.SurveyID+":"+elementID)
	}))
	require.NoError(t, f.registry.Register("app.survey.closed", func(detail any, elementID string) {
		assert.Nil(t, detail)
		handled = append(handled, "close:"+elementID)
	}))

	var events []string
	f.page.OnCustomEvent("el-1", EventComplete, func(detail any) { events = append(events, EventComplete) })
	f.page.OnCustomEvent("el-1", EventClose, func(detail any) { events = append(events, EventClose) })

	f.element.SetAttribute(context.Background(), AttrSurvey, statementSurvey)
	f.element.SetAttribute(context.Background(), AttrOnComplete, "app.survey.done")
	f.element.SetAttribute(context.Background(), AttrOnClose, "app.survey.closed")
	f.element.SetAttribute(context.Background(), AttrAutoClose, "500")
	require.NoError(t, f.element.Connect(context.Background()))

	require.NoError(t, f.page.Click(context.Background(), f.element.ContainerID(), `[data-a="next"]`))
	assert.Equal(t, []string{"complete:s1:el-1"}, handled)
	assert.Equal(t, []string{EventComplete}, events)

	f.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"complete:s1:el-1", "close:el-1"}, handled)
	assert.Equal(t, []string{EventComplete, EventClose}, events)
	_, ok := f.page.Container(f.element.ContainerID())
	assert.False(t, ok)

	// reconnecting recreates the removed container
	require.NoError(t, f.element.Connect(context.Background()))
	_, ok = f.page.Container(f.element.ContainerID())
	assert.True(t, ok)
}

func TestElement_Disconnect(t *testing.T) {
	f := newFixture(t)
	f.element.SetAttribute(context.Background(), AttrSurvey, statementSurvey)
	require.NoError(t, f.element.Connect(context.Background()))
	w := f.element.Widget()

	f.element.Disconnect()
	assert.Nil(t, f.element.Widget())
	assert.False(t, w.Snapshot().Mounted)
	assert.Equal(t, "", f.page.Snapshot().Find("#"+f.element.ContainerID()).Text())

	f.element.SetAttribute(context.Background(), AttrUserID, "u-2")
	assert.Len(t, f.configs, 1)
}

// stallingClient blocks the first fetch until its context is cancelled and
// answers every later fetch at once.
type stallingClient struct {
	calls   atomic.Int32
	stalled chan struct{}
}

func (c *stallingClient) FetchSurvey(ctx context.Context, token, surveyID string) (survey.Survey, error) {
	if c.calls.Add(1) == 1 {
		close(c.stalled)
		<-ctx.Done()
		return survey.Survey{}, ctx.Err()
	}
	return survey.Survey{ID: surveyID, Questions: []survey.Question{
		{ID: "q1", Title: "Fetched", Format: survey.FormatStatement},
	}}, nil
}

func (c *stallingClient) Submit(context.Context, string, survey.Payload) error {
	return nil
}

func TestElement_RemountDuringFetch(t *testing.T) {
	page := dom.NewPage()
	_, err := page.Append("", TagName, "el-1")
	require.NoError(t, err)

	client := &stallingClient{stalled: make(chan struct{})}
	fake := clock.NewFake(time.Unix(0, 0))
	e := New(zap.NewNop(), internal.NewValidator(), page, "el-1", NewRegistry(internal.NewValidator()), func(cfg widget.Config) *widget.Widget {
		return widget.New(page, cfg, widget.WithClient(client), widget.WithClock(fake))
	})
	e.SetAttribute(context.Background(), AttrSurveyID, "s1")
	e.SetAttribute(context.Background(), AttrToken, "tok")

	connected := make(chan error, 1)
	go func() {
		connected <- e.Connect(context.Background())
	}()

	select {
	case <-client.stalled:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}

	first := e.Widget()
	require.NotNil(t, first)

	e.SetAttribute(context.Background(), AttrUserID, "u-1")

	select {
	case err := <-connected:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connect still blocked after remount")
	}

	assert.False(t, first.Snapshot().Mounted)
	assert.NotSame(t, first, e.Widget())
	assert.Equal(t, "Fetched", page.Snapshot().Find("#"+e.ContainerID()+" .qt").Text())
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(internal.NewValidator())
	noop := func(any, string) {}

	tests := []struct {
		name      string
		path      string
		expectErr bool
	}{
		{name: "Should accept a single name", path: "done"},
		{name: "Should accept a dotted path", path: "app.handlers.$done_1"},
		{name: "Should reject an empty path", path: "", expectErr: true},
		{name: "Should reject a leading dot", path: ".done", expectErr: true},
		{name: "Should reject a call expression", path: "alert(1)", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.path, noop)
			if tt.expectErr {
				require.ErrorIs(t, err, internal.ErrValidationFailed)
				assert.Nil(t, r.Resolve(tt.path))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r.Resolve(tt.path))
		})
	}

	r.Unregister("done")
	assert.Nil(t, r.Resolve("done"))
	assert.Nil(t, r.Resolve("unknown.path"))
}

func TestParseAutoClose(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{value: "", expected: 0},
		{value: "3000", expected: 3 * time.Second},
		{value: " 250 ", expected: 250 * time.Millisecond},
		{value: "1.5", expected: 1500 * time.Microsecond},
		{value: "-10", expected: 0},
		{value: "soon", expected: 0},
		{value: "NaN", expected: 0},
	}

	for _, tt := range tests {
		t.Run("Should parse "+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseAutoClose(tt.value))
		})
	}
}
