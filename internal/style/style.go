package style

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/css/scanner"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// BaseStyleID is the element id of the document-wide stylesheet.
	BaseStyleID = "opineeo-style"

	ScopePrefix       = "sv-scope-"
	CustomStylePrefix = "sv-custom-styles-"
)

//go:embed base.css
var baseCSS string

// Base returns the stylesheet injected once per document.
func Base() string {
	return baseCSS
}

// KnownClasses are the widget classes a custom stylesheet may target. Only
// these are rewritten under the scope class.
var KnownClasses = []string{
	"sv", "qt", "qd", "qc", "opts", "qs", "btn", "btno", "btnp", "rad", "chk", "txt", "ta",
	"stars", "star-btn", "star-svg", "star-sel", "x", "body", "ft", "nav", "brand", "ltxt",
	"req", "ok", "cc", "ca", "sc-circle", "sc-check",
}

var (
	known         = make(map[string]bool, len(KnownClasses))
	unsafeScopeRe = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
)

func init() {
	for _, c := range KnownClasses {
		known[c] = true
	}
}

// IsKnownClass reports whether c is one of KnownClasses.
func IsKnownClass(c string) bool {
	return known[c]
}

// ScopeClass derives the per-instance scope class. An empty survey id falls
// back to a time and random based id.
func ScopeClass(surveyID string, now time.Time) string {
	id := surveyID
	if id == "" {
		id = fmt.Sprintf("widget-%d-%s", now.UnixMilli(), uuid.NewString()[:4])
	}
	return ScopePrefix + unsafeScopeRe.ReplaceAllString(id, "-")
}

// CustomStyleID is the element id of the custom stylesheet for a scope class.
func CustomStyleID(scopeClass string) string {
	return CustomStylePrefix + strings.TrimPrefix(scopeClass, ScopePrefix)
}

// Scope prefixes every known class selector in css with ".<scopeClass> ".
// Only a class that starts a compound selector is rewritten, so ".a.b" and
// declarations such as "margin:.5rem" are left alone.
func Scope(css, scopeClass string) (string, error) {
	var (
		out  strings.Builder
		prev *scanner.Token
	)
	out.Grow(len(css) + 64)

	s := scanner.New(css)
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			return out.String(), nil
		case scanner.TokenError:
			return "", fmt.Errorf("tokenize custom css at %d:%d: %s", tok.Line, tok.Column, tok.Value)
		}

		if tok.Type == scanner.TokenChar && tok.Value == "." && startsCompound(prev) {
			next := s.Next()
			if next.Type == scanner.TokenIdent && known[next.Value] {
				out.WriteString("." + scopeClass + " ")
			}
			out.WriteString(tok.Value)
			if next.Type == scanner.TokenEOF {
				return out.String(), nil
			}
			if next.Type == scanner.TokenError {
				return "", fmt.Errorf("tokenize custom css at %d:%d: %s", next.Line, next.Column, next.Value)
			}
			out.WriteString(next.Value)
			prev = next
			continue
		}

		out.WriteString(tok.Value)
		prev = tok
	}
}

func startsCompound(prev *scanner.Token) bool {
	if prev == nil {
		return true
	}
	switch prev.Type {
	case scanner.TokenS, scanner.TokenComment, scanner.TokenCDO, scanner.TokenCDC:
		return true
	case scanner.TokenChar:
		switch prev.Value {
		case ",", "{", "}", ">", "+", "~", ";":
			return true
		}
	}
	return false
}

// Scoper memoises Scope results. Remounts with the same custom CSS are common.
type Scoper struct {
	cache *lru.Cache[string, string]
}

func NewScoper(size int) (*Scoper, error) {
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Scoper{cache: cache}, nil
}

func (s *Scoper) Scope(css, scopeClass string) (string, error) {
	key := scopeClass + "\x00" + css
	if scoped, ok := s.cache.Get(key); ok {
		return scoped, nil
	}

	scoped, err := Scope(css, scopeClass)
	if err != nil {
		return "", err
	}
	s.cache.Add(key, scoped)
	return scoped, nil
}
