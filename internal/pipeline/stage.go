package pipeline

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/tripcrew/trip-planner/internal/llm"
	"github.com/tripcrew/trip-planner/internal/model"
)

// Stage identifiers, in execution order.
const (
	StageSelectCities         = "select_cities"
	StageGatherLocalKnowledge = "gather_local_knowledge"
	StageBuildItinerary       = "build_itinerary"
)

//go:embed stages.yaml
var defaultCatalog []byte

// Stage is one generation step: a fixed role descriptor plus an instruction
// template rendered against the trip request.
type Stage struct {
	ID             string `yaml:"id"`
	Role           string `yaml:"role"`
	Goal           string `yaml:"goal"`
	Backstory      string `yaml:"backstory"`
	ExpectedOutput string `yaml:"expected_output"`
	Instructions   string `yaml:"instructions"`

	tmpl *template.Template
}

type catalog struct {
	Stages []Stage `yaml:"stages"`
}

// promptData is what instruction templates can reference.
type promptData struct {
	Origin    string
	Cities    string
	DateRange string
	Interests string
}

// DefaultStages returns the built-in three stage catalog.
func DefaultStages() []Stage {
	stages, err := LoadStages(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("pipeline: built-in stage catalog: %v", err))
	}
	return stages
}

// LoadStages parses a YAML stage catalog and compiles its templates.
func LoadStages(data []byte) ([]Stage, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse stage catalog: %w", err)
	}
	if len(c.Stages) == 0 {
		return nil, errors.New("stage catalog is empty")
	}

	seen := make(map[string]bool, len(c.Stages))
	for i := range c.Stages {
		st := &c.Stages[i]
		if st.ID == "" {
			return nil, fmt.Errorf("stage %d has no id", i)
		}
		if seen[st.ID] {
			return nil, fmt.Errorf("duplicate stage id %q", st.ID)
		}
		seen[st.ID] = true
		if strings.TrimSpace(st.Role) == "" || strings.TrimSpace(st.Instructions) == "" {
			return nil, fmt.Errorf("stage %q needs a role and instructions", st.ID)
		}

		tmpl, err := template.New(st.ID).Option("missingkey=error").Parse(st.Instructions)
		if err != nil {
			return nil, fmt.Errorf("stage %q instructions: %w", st.ID, err)
		}
		st.tmpl = tmpl
	}
	return c.Stages, nil
}

// messages builds the opening conversation for the stage. previous is the
// full output of the preceding stage, empty for the first one.
func (s Stage) messages(req model.TripRequest, previous string) ([]llm.ChatMessage, error) {
	interests := req.Interests
	if strings.TrimSpace(interests) == "" {
		interests = "no particular preference"
	}

	var b strings.Builder
	if err := s.tmpl.Execute(&b, promptData{
		Origin:    req.Origin,
		Cities:    req.CitiesText(),
		DateRange: req.DateRange,
		Interests: interests,
	}); err != nil {
		return nil, fmt.Errorf("render instructions: %w", err)
	}

	user := strings.TrimSpace(b.String())
	if s.ExpectedOutput != "" {
		user += "\n\nExpected output: " + s.ExpectedOutput
	}
	if previous != "" {
		user += "\n\nContext from the previous step:\n\n" + previous
	}

	system := fmt.Sprintf("Role: %s\n%s\nGoal: %s", s.Role, s.Backstory, s.Goal)

	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, nil
}
