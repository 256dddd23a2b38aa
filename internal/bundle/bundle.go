package bundle

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"opineeo/survey-widget/internal/clock"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

//go:embed runtime.js
var runtimeSource string

var runtimeTemplate = template.Must(template.New("runtime.js").Parse(runtimeSource))

const (
	ContentType = "application/javascript; charset=utf-8"
	FileName    = "opineeo.js"
)

// Params are baked into the runtime when it is built.
type Params struct {
	SocketPath string
	Version    string
}

// Bundle is a built browser runtime.
type Bundle struct {
	Body    []byte
	ETag    string
	BuiltAt time.Time
}

// Loader builds the browser runtime lazily and shares one copy between all
// holders. The copy is dropped when the last holder releases it.
type Loader struct {
	logger *zap.Logger
	params Params
	clock  clock.Clock
	group  singleflight.Group

	mu      sync.Mutex
	refs    int
	current *Bundle
	builds  int
}

func NewLoader(logger *zap.Logger, params Params, c clock.Clock) *Loader {
	if c == nil {
		c = clock.Real{}
	}
	return &Loader{
		logger: logger,
		params: params,
		clock:  c,
	}
}

// Acquire returns the shared bundle and a release func. Concurrent first
// callers wait for a single build.
func (l *Loader) Acquire(ctx context.Context) (*Bundle, func(), error) {
	b, err := l.load(ctx)
	if err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	l.refs++
	if l.current == nil {
		l.current = b
	}
	l.mu.Unlock()

	var once sync.Once
	return b, func() { once.Do(l.release) }, nil
}

// Refs is the number of holders that have not released yet.
func (l *Loader) Refs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}

// Builds is how many times the runtime has been built.
func (l *Loader) Builds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.builds
}

func (l *Loader) load(ctx context.Context) (*Bundle, error) {
	l.mu.Lock()
	if l.current != nil {
		b := l.current
		l.mu.Unlock()
		return b, nil
	}
	l.mu.Unlock()

	v, err, shared := l.group.Do(FileName, func() (interface{}, error) {
		return l.build()
	})
	if err != nil {
		return nil, err
	}

	logutil.WithContext(ctx, l.logger).Debug("Runtime bundle loaded", zap.Bool("shared", shared))
	return v.(*Bundle), nil
}

func (l *Loader) build() (*Bundle, error) {
	var b strings.Builder
	err := runtimeTemplate.Execute(&b, l.params)
	if err != nil {
		return nil, fmt.Errorf("build runtime bundle: %w", err)
	}

	body := []byte(b.String())
	sum := sha256.Sum256(body)

	l.mu.Lock()
	l.builds++
	l.mu.Unlock()

	return &Bundle{
		Body:    body,
		ETag:    `"` + hex.EncodeToString(sum[:8]) + `"`,
		BuiltAt: l.clock.Now(),
	}, nil
}

func (l *Loader) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 {
		return
	}
	l.refs--
	if l.refs == 0 {
		l.current = nil
	}
}
