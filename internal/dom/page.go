package dom

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"opineeo/survey-widget/internal"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const emptyDocument = `<!DOCTYPE html><html><head></head><body></body></html>`

type listenerKey struct {
	target string
	kind   EventKind
}

type listenerEntry struct {
	id int
	l  Listener
}

type customKey struct {
	target string
	name   string
}

type customEntry struct {
	id int
	fn func(detail any)
}

// Page is an in-memory browser document. Observers see every mutation in the
// order it was applied; they run with the page locked and must not call back
// into the page.
type Page struct {
	mu        sync.Mutex
	doc       *goquery.Document
	nextID    int
	listeners map[listenerKey][]listenerEntry
	custom    map[customKey][]customEntry
	observers map[int]func(Mutation)

	focusTarget   string
	focusSelector string
}

func NewPage() *Page {
	p, err := NewPageFromHTML(emptyDocument)
	if err != nil {
		// the empty document always parses
		panic(err)
	}
	return p
}

// NewPageFromHTML parses a full document, used when a host page ships its own markup.
func NewPageFromHTML(document string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return &Page{
		doc:       doc,
		listeners: make(map[listenerKey][]listenerEntry),
		custom:    make(map[customKey][]customEntry),
		observers: make(map[int]func(Mutation)),
	}, nil
}

// Observe registers fn for every subsequent mutation.
func (p *Page) Observe(fn func(Mutation)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.observers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
	}
}

// HTML renders the whole document.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out, err := goquery.OuterHtml(p.doc.Selection)
	if err != nil {
		return ""
	}
	return out
}

// Snapshot returns a detached copy of the document for inspection.
func (p *Page) Snapshot() *goquery.Document {
	p.mu.Lock()
	out, err := goquery.OuterHtml(p.doc.Selection)
	p.mu.Unlock()
	if err != nil {
		return goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}

	snapshot, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		return goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}
	return snapshot
}

// Sync runs fn with the page locked, so no mutation can interleave with it.
// fn must not modify doc or call back into the page.
func (p *Page) Sync(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// Focused returns the element id and selector of the last focus call.
func (p *Page) Focused() (target string, selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focusTarget, p.focusSelector
}

func (p *Page) Container(id string) (Container, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.byID(id).Length() == 0 {
		return nil, false
	}
	return &node{page: p, id: id}, true
}

// Append creates <tag id="id"> as the last child of parentID, or of <body>
// when parentID is empty. An element with the same id is returned as is.
func (p *Page) Append(parentID, tag, id string) (Container, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.byID(id).Length() > 0 {
		return &node{page: p, id: id}, nil
	}

	parent := p.doc.Find("body")
	if parentID != "" {
		parent = p.byID(parentID)
	}
	if parent.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", internal.ErrContainerNotFound, parentID)
	}

	parent.AppendHtml(fmt.Sprintf(`<%s id="%s"></%s>`, tag, html.EscapeString(id), tag))
	p.notify(Mutation{Kind: MutationCreate, Target: id, Name: tag, Value: parentID})
	return &node{page: p, id: id}, nil
}

// SetAttr sets an attribute on the element with the given id.
func (p *Page) SetAttr(id, name, value string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.byID(id)
	if sel.Length() == 0 {
		return false
	}
	sel.SetAttr(name, value)
	p.notify(Mutation{Kind: MutationAttr, Target: id, Name: name, Value: value})
	return true
}

func (p *Page) Attr(id, name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byID(id).Attr(name)
}

func (p *Page) HasStyle(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.styleByID(id).Length() > 0
}

func (p *Page) AppendStyle(id, css string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	head := p.doc.Find("head")
	head.AppendHtml(fmt.Sprintf(`<style id="%s"></style>`, html.EscapeString(id)))
	setText(p.styleByID(id).Last(), css)
	p.notify(Mutation{Kind: MutationAppendStyle, Target: id, Value: css})
}

func (p *Page) RemoveStyle(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.styleByID(id)
	if sel.Length() == 0 {
		return
	}
	sel.Remove()
	p.notify(Mutation{Kind: MutationRemoveStyle, Target: id})
}

// StyleText returns the text of the style element with the given id.
func (p *Page) StyleText(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.styleByID(id)
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

// Dispatch delivers ev to the listeners registered on the container. It
// reports whether any listener ran.
func (p *Page) Dispatch(ctx context.Context, containerID string, ev Event) bool {
	p.mu.Lock()
	entries := append([]listenerEntry(nil), p.listeners[listenerKey{target: containerID, kind: ev.Kind}]...)
	p.mu.Unlock()

	for _, e := range entries {
		e.l(ctx, ev)
	}
	return len(entries) > 0
}

// Click resolves the first element matching selector inside the container
// the way a delegated listener sees it and dispatches a click.
func (p *Page) Click(ctx context.Context, containerID, selector string) error {
	ev, err := p.resolve(containerID, selector, EventClick)
	if err != nil {
		return err
	}
	p.Dispatch(ctx, containerID, ev)
	return nil
}

// Input sets the value of the first element matching selector and dispatches an input event.
func (p *Page) Input(ctx context.Context, containerID, selector, value string) error {
	p.mu.Lock()
	target := p.byID(containerID).Find(selector).First()
	if target.Length() == 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s %s", internal.ErrContainerNotFound, containerID, selector)
	}
	if goquery.NodeName(target) == "textarea" {
		setText(target, value)
	} else {
		target.SetAttr("value", value)
	}
	p.mu.Unlock()

	ev, err := p.resolve(containerID, selector, EventInput)
	if err != nil {
		return err
	}
	ev.Value = value
	p.Dispatch(ctx, containerID, ev)
	return nil
}

func (p *Page) resolve(containerID, selector string, kind EventKind) (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.byID(containerID).Find(selector).First()
	if target.Length() == 0 {
		return Event{}, fmt.Errorf("%w: %s %s", internal.ErrContainerNotFound, containerID, selector)
	}

	ev := Event{Kind: kind}
	ev.Action, _ = target.Closest("[data-a]").Attr("data-a")
	ev.QuestionID, _ = target.Closest("[data-q]").Attr("data-q")
	if goquery.NodeName(target) == "textarea" {
		ev.Value = target.Text()
	} else {
		ev.Value, _ = target.Attr("value")
	}
	if star, ok := target.Closest(".star-btn").Attr("data-star"); ok {
		ev.Star, _ = strconv.Atoi(star)
	}
	return ev, nil
}

// OnCustomEvent registers fn for custom events dispatched on targetID.
func (p *Page) OnCustomEvent(targetID, name string, fn func(detail any)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	key := customKey{target: targetID, name: name}
	p.custom[key] = append(p.custom[key], customEntry{id: id, fn: fn})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.custom[key] = removeCustom(p.custom[key], id)
	}
}

func (p *Page) DispatchCustomEvent(targetID, name string, detail any) {
	p.mu.Lock()
	entries := append([]customEntry(nil), p.custom[customKey{target: targetID, name: name}]...)
	p.notify(Mutation{Kind: MutationEvent, Target: targetID, Name: name, Detail: detail})
	p.mu.Unlock()

	for _, e := range entries {
		e.fn(detail)
	}
}

func (p *Page) notify(m Mutation) {
	for _, fn := range p.observers {
		fn(m)
	}
}

func (p *Page) byID(id string) *goquery.Selection {
	if id == "" {
		return &goquery.Selection{}
	}
	return p.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
}

func (p *Page) styleByID(id string) *goquery.Selection {
	return p.doc.Find("style[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	})
}

func removeListener(entries []listenerEntry, id int) []listenerEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

func removeCustom(entries []customEntry, id int) []customEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

// setText replaces the children of every node with one raw text node, so
// style content is never entity-escaped.
func setText(sel *goquery.Selection, text string) {
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}
