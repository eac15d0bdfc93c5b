package mudsmoke

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// scenarioFile is the YAML layout read by LoadScenarios.
type scenarioFile struct {
	Scenarios []scenarioDoc `yaml:"scenarios"`
}

type scenarioDoc struct {
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Gate makes this scenario's failures fail the run (nil = true).
	Gate *bool `yaml:"gate"`

	// Quit is sent after the last step (nil = "quit", "" = nothing).
	Quit *string `yaml:"quit"`

	EnterTimeout time.Duration `yaml:"enter_timeout"`

	Steps []stepDoc `yaml:"steps"`
}

type stepDoc struct {
	Section string `yaml:"section"`
	Command string `yaml:"command"`

	// Wait is a regex marking the output as complete (default: the
	// expected text, when Expect is a plain contains).
	Wait string `yaml:"wait"`

	// Timeout bounds the wait, so it needs a wait pattern.
	Timeout time.Duration `yaml:"timeout"`

	Expect *expectDoc `yaml:"expect"`
}

// expectDoc is one node of an expectation tree. Exactly one field is set.
type expectDoc struct {
	Contains string      `yaml:"contains"`
	Regexp   string      `yaml:"regexp"`
	Not      *expectDoc  `yaml:"not"`
	Any      []expectDoc `yaml:"any"`
	All      []expectDoc `yaml:"all"`
}

// LoadScenarios reads scenarios from the YAML file at path. Unknown keys,
// invalid regular expressions and malformed expectations are errors.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ScenarioFileError{Path: path, Err: err}
	}
	scenarios, err := parseScenarios(data)
	if err != nil {
		return nil, &ScenarioFileError{Path: path, Err: err}
	}
	return scenarios, nil
}

func parseScenarios(data []byte) ([]Scenario, error) {
	var f scenarioFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(&f)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(f.Scenarios) == 0 {
		return nil, errors.New("no scenarios defined")
	}
	seen := make(map[string]bool, len(f.Scenarios))
	scenarios := make([]Scenario, 0, len(f.Scenarios))
	for i, doc := range f.Scenarios {
		s, err := doc.compile()
		if err != nil {
			return nil, fmt.Errorf("scenario %d (%s): %w", i+1, doc.Name, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("scenario %q defined more than once", s.Name)
		}
		seen[s.Name] = true
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (doc scenarioDoc) compile() (Scenario, error) {
	if doc.Name == "" {
		return Scenario{}, errors.New("name is required")
	}
	if doc.User == "" {
		return Scenario{}, errors.New("user is required")
	}
	s := Scenario{
		Name:         doc.Name,
		User:         doc.User,
		Password:     doc.Password,
		Gate:         doc.Gate == nil || *doc.Gate,
		Quit:         "quit",
		EnterTimeout: doc.EnterTimeout,
	}
	if doc.Quit != nil {
		s.Quit = *doc.Quit
	}
	for i, sd := range doc.Steps {
		step, err := sd.compile()
		if err != nil {
			return Scenario{}, fmt.Errorf("step %d: %w", i+1, err)
		}
		s.Steps = append(s.Steps, step)
	}
	return s, nil
}

func (sd stepDoc) compile() (Step, error) {
	if sd.Command == "" {
		return Step{}, errors.New("command is required")
	}
	if sd.Timeout < 0 {
		return Step{}, fmt.Errorf("timeout cannot be negative, got %v", sd.Timeout)
	}
	step := Step{Section: sd.Section, Command: sd.Command, Timeout: sd.Timeout}
	if sd.Expect != nil {
		m, err := sd.Expect.compile()
		if err != nil {
			return Step{}, fmt.Errorf("expect: %w", err)
		}
		step.Expect = m
	}
	switch {
	case sd.Wait != "":
		p, err := CompilePattern(sd.Wait)
		if err != nil {
			return Step{}, fmt.Errorf("wait: %w", err)
		}
		step.Wait = p
	case sd.Expect != nil && sd.Expect.Contains != "":
		step.Wait = LiteralPattern(sd.Expect.Contains)
	}
	if step.Timeout > 0 && step.Wait == nil {
		return Step{}, errors.New("timeout needs a wait pattern, set wait or expect contains")
	}
	return step, nil
}

func (e *expectDoc) compile() (Matcher, error) {
	set := 0
	for _, ok := range []bool{e.Contains != "", e.Regexp != "", e.Not != nil, len(e.Any) > 0, len(e.All) > 0} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("want exactly one of contains, regexp, not, any or all, got %d", set)
	}
	switch {
	case e.Contains != "":
		return Text(e.Contains), nil
	case e.Regexp != "":
		p, err := CompilePattern(e.Regexp)
		if err != nil {
			return nil, err
		}
		return MatchPattern(p), nil
	case e.Not != nil:
		m, err := e.Not.compile()
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not(m), nil
	case len(e.Any) > 0:
		ms, err := compileAll(e.Any)
		if err != nil {
			return nil, fmt.Errorf("any: %w", err)
		}
		return Any(ms...), nil
	default:
		ms, err := compileAll(e.All)
		if err != nil {
			return nil, fmt.Errorf("all: %w", err)
		}
		return All(ms...), nil
	}
}

func compileAll(docs []expectDoc) ([]Matcher, error) {
	ms := make([]Matcher, 0, len(docs))
	for i := range docs {
		m, err := docs[i].compile()
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}

// SelectScenarios returns the scenarios whose names are listed, keeping
// their original order. No names selects everything.
func SelectScenarios(scenarios []Scenario, names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var selected []Scenario
	for _, s := range scenarios {
		if want[s.Name] {
			selected = append(selected, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("no scenario named %s", strings.Join(missing, ", "))
	}
	return selected, nil
}
