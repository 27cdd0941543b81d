// Package questionnaire holds the restaurant onboarding questions, parses
// submitted answers and tracks a user's progress through them.
package questionnaire

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when copy is missing for a requested language.
const DefaultLanguage = "es"

// Kind identifies how a question is answered.
type Kind string

const (
	KindText         Kind = "text"
	KindLongText     Kind = "long_text"
	KindSingleChoice Kind = "single_choice"
	KindMultiChoice  Kind = "multi_choice"
	KindNumber       Kind = "number"
	KindLocation     Kind = "location"
)

// Text is copy keyed by language tag.
type Text map[string]string

// In returns the copy for lang, falling back to DefaultLanguage.
func (t Text) In(lang string) string {
	if value, ok := t[lang]; ok && value != "" {
		return value
	}
	if base, _, found := strings.Cut(lang, "-"); found {
		if value, ok := t[base]; ok && value != "" {
			return value
		}
	}
	return t[DefaultLanguage]
}

// Option is one choice of a choice question.
type Option struct {
	Value string `yaml:"value"`
	Label Text   `yaml:"label"`
	// Detail asks for a free-text detail when this option is picked.
	Detail bool `yaml:"detail"`
}

// Question is one entry in the catalog.
type Question struct {
	ID          string   `yaml:"id"`
	Kind        Kind     `yaml:"kind"`
	Optional    bool     `yaml:"optional"`
	Prompt      Text     `yaml:"prompt"`
	Placeholder Text     `yaml:"placeholder"`
	Options     []Option `yaml:"options"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Step        float64  `yaml:"step"`
}

// Option returns the option with value.
func (q Question) Option(value string) (Option, bool) {
	for _, option := range q.Options {
		if option.Value == value {
			return option, true
		}
	}
	return Option{}, false
}

// Step groups questions under a heading.
type Step struct {
	ID          string     `yaml:"id"`
	Title       Text       `yaml:"title"`
	Description Text       `yaml:"description"`
	Questions   []Question `yaml:"questions"`
}

// Catalog is the ordered set of steps and the country list used by
// location questions.
type Catalog struct {
	Steps     []Step   `yaml:"steps"`
	Countries []Option `yaml:"countries"`

	questions []Question
	stepOf    []int
	index     map[string]int
}

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog. It is parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defaultCatalog)
	})
	return defaultCat, defaultErr
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal questionnaire: %w", err)
	}
	if err := catalog.build(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func (c *Catalog) build() error {
	if len(c.Steps) == 0 {
		return errors.New("questionnaire has no steps")
	}
	c.index = make(map[string]int)
	for stepIdx, step := range c.Steps {
		if strings.TrimSpace(step.ID) == "" {
			return fmt.Errorf("step %d: id is required", stepIdx)
		}
		if len(step.Questions) == 0 {
			return fmt.Errorf("step %s: no questions", step.ID)
		}
		for _, q := range step.Questions {
			if err := validateQuestion(q); err != nil {
				return fmt.Errorf("step %s: %w", step.ID, err)
			}
			if _, dup := c.index[q.ID]; dup {
				return fmt.Errorf("question %s: duplicate id", q.ID)
			}
			c.index[q.ID] = len(c.questions)
			c.questions = append(c.questions, q)
			c.stepOf = append(c.stepOf, stepIdx)
		}
	}
	for _, q := range c.questions {
		if q.Kind == KindLocation && len(c.Countries) == 0 {
			return fmt.Errorf("question %s: location needs a country list", q.ID)
		}
	}
	return nil
}

func validateQuestion(q Question) error {
	if strings.TrimSpace(q.ID) == "" {
		return errors.New("question id is required")
	}
	if q.Prompt[DefaultLanguage] == "" {
		return fmt.Errorf("question %s: %s prompt is required", q.ID, DefaultLanguage)
	}
	switch q.Kind {
	case KindText, KindLongText, KindLocation:
	case KindSingleChoice, KindMultiChoice:
		if len(q.Options) == 0 {
			return fmt.Errorf("question %s: choice question has no options", q.ID)
		}
		seen := make(map[string]bool, len(q.Options))
		for _, option := range q.Options {
			if option.Value == "" || seen[option.Value] {
				return fmt.Errorf("question %s: option values must be unique and non-empty", q.ID)
			}
			seen[option.Value] = true
		}
	case KindNumber:
		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			return fmt.Errorf("question %s: min exceeds max", q.ID)
		}
		if q.Step < 0 {
			return fmt.Errorf("question %s: negative step", q.ID)
		}
	default:
		return fmt.Errorf("question %s: unknown kind %q", q.ID, q.Kind)
	}
	return nil
}

// Len is the number of questions.
func (c *Catalog) Len() int { return len(c.questions) }

// Question returns the question at index, clamped into range.
func (c *Catalog) Question(index int) Question {
	return c.questions[c.clamp(index)]
}

// Lookup returns the question with id.
func (c *Catalog) Lookup(id string) (Question, int, bool) {
	idx, ok := c.index[id]
	if !ok {
		return Question{}, 0, false
	}
	return c.questions[idx], idx, true
}

// StepOf returns the step index holding the question at index.
func (c *Catalog) StepOf(index int) int {
	return c.stepOf[c.clamp(index)]
}

// Country returns the country option for an ISO code.
func (c *Catalog) Country(code string) (Option, bool) {
	for _, country := range c.Countries {
		if country.Value == code {
			return country, true
		}
	}
	return Option{}, false
}

// Missing lists the ids of required questions progress has not answered,
// in catalog order.
func (c *Catalog) Missing(progress Progress) []string {
	var missing []string
	for _, q := range c.questions {
		if q.Optional {
			continue
		}
		answer, ok := progress.Answers[q.ID]
		if !ok || answer == nil || !answer.Answered() {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

// Complete reports whether every required question is answered.
func (c *Catalog) Complete(progress Progress) bool {
	return len(c.Missing(progress)) == 0
}

func (c *Catalog) clamp(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(c.questions) {
		return len(c.questions) - 1
	}
	return index
}
