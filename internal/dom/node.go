package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// node is a live reference to an element by id. Every call re-resolves the
// element, so a removed node turns every operation into a no-op.
type node struct {
	page *Page
	id   string
}

func (n *node) ID() string { return n.id }

func (n *node) Connected() bool {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()
	return n.page.byID(n.id).Length() > 0
}

func (n *node) SetHTML(html string) {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	sel := n.page.byID(n.id)
	if sel.Length() == 0 {
		return
	}
	sel.SetHtml(html)
	n.page.notify(Mutation{Kind: MutationHTML, Target: n.id, Value: html})
}

func (n *node) HTML() string {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	out, err := n.page.byID(n.id).Html()
	if err != nil {
		return ""
	}
	return out
}

func (n *node) SetClassName(name string) {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	sel := n.page.byID(n.id)
	if sel.Length() == 0 {
		return
	}
	if current, _ := sel.Attr("class"); current == name {
		return
	}
	sel.SetAttr("class", name)
	n.page.notify(Mutation{Kind: MutationAttr, Target: n.id, Name: "class", Value: name})
}

func (n *node) SetDisplay(display string) {
	n.SetStyle("", "display", display)
}

func (n *node) Has(selector string) bool {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()
	return n.find(selector).Length() > 0
}

func (n *node) SetInnerHTML(selector, html string) bool {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	sel := n.find(selector)
	if sel.Length() == 0 {
		return false
	}
	sel.SetHtml(html)
	n.page.notify(Mutation{Kind: MutationHTML, Target: n.id, Selector: selector, Value: html})
	return true
}

func (n *node) AddClass(selector, class string) bool {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	sel := n.find(selector)
	if sel.Length() == 0 {
		return false
	}
	sel.AddClass(class)
	n.page.notify(Mutation{Kind: MutationAddClass, Target: n.id, Selector: selector, Value: class})
	return true
}

func (n *node) RemoveClass(selector, class string) bool {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	sel := n.find(selector)
	if sel.Length() == 0 {
		return false
	}
	sel.RemoveClass(class)
	n.page.notify(Mutation{Kind: MutationRemoveClass, Target: n.id, Selector: selector, Value: class})
	return true
}

// SetStyle sets one inline style property; an empty value removes it.
func (n *node) SetStyle(selector, property, value string) bool {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	sel := n.find(selector)
	if sel.Length() == 0 {
		return false
	}
	sel.Each(func(_ int, s *goquery.Selection) {
		current, _ := s.Attr("style")
		updated := setStyleProperty(current, property, value)
		if updated == "" {
			s.RemoveAttr("style")
			return
		}
		s.SetAttr("style", updated)
	})
	n.page.notify(Mutation{Kind: MutationStyle, Target: n.id, Selector: selector, Name: property, Value: value})
	return true
}

func (n *node) Focus(selector string) bool {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	if n.find(selector).Length() == 0 {
		return false
	}
	n.page.focusTarget = n.id
	n.page.focusSelector = selector
	n.page.notify(Mutation{Kind: MutationFocus, Target: n.id, Selector: selector})
	return true
}

func (n *node) Remove() {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	sel := n.page.byID(n.id)
	if sel.Length() == 0 {
		return
	}
	sel.Remove()
	for key := range n.page.listeners {
		if key.target == n.id {
			delete(n.page.listeners, key)
		}
	}
	n.page.notify(Mutation{Kind: MutationRemove, Target: n.id})
}

func (n *node) AddListener(kind EventKind, l Listener) func() {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()

	n.page.nextID++
	id := n.page.nextID
	key := listenerKey{target: n.id, kind: kind}
	n.page.listeners[key] = append(n.page.listeners[key], listenerEntry{id: id, l: l})

	return func() {
		n.page.mu.Lock()
		defer n.page.mu.Unlock()
		n.page.listeners[key] = removeListener(n.page.listeners[key], id)
	}
}

func (n *node) find(selector string) *goquery.Selection {
	sel := n.page.byID(n.id)
	if selector == "" {
		return sel
	}
	return sel.Find(selector)
}

func setStyleProperty(style, property, value string) string {
	var decls []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(name), property) {
			continue
		}
		decls = append(decls, decl)
	}
	if value != "" {
		decls = append(decls, property+": "+value)
	}
	return strings.Join(decls, "; ")
}
