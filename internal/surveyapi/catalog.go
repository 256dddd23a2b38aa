package surveyapi

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Catalog holds the survey definitions served by the API, keyed by id.
type Catalog struct {
	mu      sync.RWMutex
	surveys map[string]survey.Survey
}

func NewCatalog(surveys ...survey.Survey) *Catalog {
	c := &Catalog{surveys: make(map[string]survey.Survey, len(surveys))}
	for _, s := range surveys {
		c.surveys[s.ID] = s
	}
	return c
}

// LoadCatalog reads every .yaml, .yml and .json file in dir. Each file holds
// one survey; ids must be unique across the directory.
func LoadCatalog(logger *zap.Logger, v *validator.Validate, dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrSurveyCatalogBroken, err)
	}

	catalog := NewCatalog()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		s, ok, err := readSurveyFile(v, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", internal.ErrSurveyCatalogBroken, entry.Name(), err)
		}
		if !ok {
			continue
		}
		if _, exists := catalog.surveys[s.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate survey id %q in %s", internal.ErrSurveyCatalogBroken, s.ID, entry.Name())
		}

		catalog.surveys[s.ID] = s
		logger.Debug("Loaded survey", zap.String("survey_id", s.ID), zap.Int("questions", s.Len()), zap.String("file", entry.Name()))
	}

	logger.Info("Survey catalog loaded", zap.String("dir", dir), zap.Int("surveys", len(catalog.surveys)))
	return catalog, nil
}

// ReadSurveyFile decodes and validates a single survey file.
func ReadSurveyFile(v *validator.Validate, path string) (survey.Survey, error) {
	s, ok, err := readSurveyFile(v, path)
	if err != nil {
		return survey.Survey{}, err
	}
	if !ok {
		return survey.Survey{}, fmt.Errorf("%w: unsupported file type %s", internal.ErrSurveyDefinition, filepath.Ext(path))
	}
	return s, nil
}

func readSurveyFile(v *validator.Validate, path string) (survey.Survey, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return survey.Survey{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return survey.Survey{}, true, err
	}

	s, err := survey.Decode(v, data)
	if err != nil {
		return survey.Survey{}, true, err
	}
	if s.ID == "" {
		return survey.Survey{}, true, fmt.Errorf("%w: survey id is required", internal.ErrSurveyDefinition)
	}
	return s, true, nil
}

func (c *Catalog) Get(id string) (survey.Survey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.surveys[id]
	return s, ok
}

func (c *Catalog) Put(s survey.Survey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surveys[s.ID] = s
}

// IDs returns the survey ids in lexical order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.surveys))
	for id := range c.surveys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
