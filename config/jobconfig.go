package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// JobConfigFile is the name of the job configuration file.
const JobConfigFile = "config.yaml"

// Defaults applied to fields the job configuration leaves out.
const (
	DefaultTemperature         = 0.7
	DefaultMaxCompletionTokens = 4000
)

var (
	// ErrJobNotFound is returned when a job directory or its config file is missing.
	ErrJobNotFound = errors.New("job configuration not found")

	// ErrMissingParameter is returned when a required parameter has no value.
	ErrMissingParameter = errors.New("missing required parameter")
)

// ParameterPattern matches ${parameters.name} references in job templates.
var ParameterPattern = regexp.MustCompile(`\$\{parameters\.([A-Za-z0-9_]+)\}`)

// JobConfig is the parsed config.yaml of one job.
type JobConfig struct {
	Name                string               `yaml:"name"`
	Model               string               `yaml:"model"`
	Temperature         float64              `yaml:"temperature"`
	MaxCompletionTokens int                  `yaml:"maxCompletionTokens"`
	Reasoning           Reasoning            `yaml:"reasoning"`
	Parameters          map[string]Parameter `yaml:"parameters"`
	ContentSources      ContentSources       `yaml:"contentSources"`
	Output              Output               `yaml:"output"`
}

// Reasoning selects the provider and tools of a tool-enabled run. Empty
// fields are resolved by the report generator.
type Reasoning struct {
	Provider      string   `yaml:"provider"`
	MaxIterations int      `yaml:"maxIterations"`
	Tools         []string `yaml:"tools"`
}

// Parameter declares one template parameter.
type Parameter struct {
	Type        string `yaml:"type"`
	Default     any    `yaml:"default"`
	Description string `yaml:"description"`
	Required    *bool  `yaml:"required"`
}

// IsRequired reports whether a value must be supplied. Without an explicit
// setting a parameter is required exactly when it has no default.
func (p Parameter) IsRequired() bool {
	if p.Required != nil {
		return *p.Required
	}
	return p.Default == nil
}

// ContentSources describes the pools of files the model may explore.
type ContentSources struct {
	Activity  *ContentSource `yaml:"activity"`
	History   *ContentSource `yaml:"history"`
	Summaries *ContentSource `yaml:"summaries"`
	Context   *ContentSource `yaml:"context"`
}

// ContentSource describes one pool of files.
type ContentSource struct {
	Directory       string   `yaml:"directory"`
	Description     string   `yaml:"description"`
	Patterns        []string `yaml:"patterns"`
	MonthsAvailable int      `yaml:"monthsAvailable"`
	WeeksAvailable  int      `yaml:"weeksAvailable"`
}

// Output names the files a run writes below <summaryDir>/<year>/<period>.
type Output struct {
	Summary    OutputFile `yaml:"summary"`
	Completion OutputFile `yaml:"completion"`
	Inputs     OutputFile `yaml:"inputs"`
}

// OutputFile describes one output file.
type OutputFile struct {
	Type    string `yaml:"type"`
	Format  string `yaml:"format"`
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// DefaultOutput is used for output files the configuration does not name.
var DefaultOutput = Output{
	Summary:    OutputFile{Type: "summary", Format: "markdown", Pattern: "summary.md"},
	Completion: OutputFile{Type: "completion", Format: "json", Pattern: "completion.json"},
	Inputs:     OutputFile{Type: "inputs", Format: "json", Pattern: "inputs.json"},
}

// LoadJobConfig reads <dir>/config.yaml, applies defaults and validates it.
func LoadJobConfig(dir string) (JobConfig, error) {
	path := filepath.Join(dir, JobConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return JobConfig{}, fmt.Errorf("%w: %s", ErrJobNotFound, path)
		}
		return JobConfig{}, fmt.Errorf("read job config: %w", err)
	}

	cfg, err := ParseJobConfig(data)
	if err != nil {
		return JobConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(dir)
	}
	return cfg, nil
}

// ParseJobConfig decodes YAML job configuration, applies defaults and
// validates the result.
func ParseJobConfig(data []byte) (JobConfig, error) {
	cfg := JobConfig{
		Temperature:         DefaultTemperature,
		MaxCompletionTokens: DefaultMaxCompletionTokens,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return JobConfig{}, fmt.Errorf("parse job config: %w", err)
	}

	fillOutput(&cfg.Output.Summary, DefaultOutput.Summary)
	fillOutput(&cfg.Output.Completion, DefaultOutput.Completion)
	fillOutput(&cfg.Output.Inputs, DefaultOutput.Inputs)

	if err := cfg.Validate(); err != nil {
		return JobConfig{}, err
	}
	return cfg, nil
}

func fillOutput(f *OutputFile, def OutputFile) {
	if f.Type == "" {
		f.Type = def.Type
	}
	if f.Format == "" {
		f.Format = def.Format
	}
	if f.Pattern == "" {
		f.Pattern = def.Pattern
	}
}

// Validate checks the fields a run depends on.
func (c JobConfig) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("missing required config property: model"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature))
	}
	if c.MaxCompletionTokens <= 0 {
		errs = append(errs, fmt.Errorf("maxCompletionTokens must be positive, got %d", c.MaxCompletionTokens))
	}
	if c.Reasoning.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("reasoning.maxIterations must not be negative, got %d", c.Reasoning.MaxIterations))
	}
	for _, key := range c.ParameterNames() {
		switch t := c.Parameters[key].Type; t {
		case "", "string", "number":
		default:
			errs = append(errs, fmt.Errorf("parameter %q has unsupported type %q", key, t))
		}
	}
	return errors.Join(errs...)
}

// ParameterNames returns the declared parameter names, sorted.
func (c JobConfig) ParameterNames() []string {
	names := make([]string, 0, len(c.Parameters))
	for name := range c.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveParameters merges supplied values with declared defaults.
// Supplied values for undeclared names pass through unchanged. A declared
// number parameter given as a string is parsed.
func (c JobConfig) ResolveParameters(values map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(values)+len(c.Parameters))
	for k, v := range values {
		if v != nil {
			resolved[k] = v
		}
	}

	for _, key := range c.ParameterNames() {
		param := c.Parameters[key]
		value, ok := resolved[key]
		if !ok {
			if param.Default != nil {
				resolved[key] = param.Default
				continue
			}
			if param.IsRequired() {
				return nil, fmt.Errorf("%w: %s", ErrMissingParameter, key)
			}
			continue
		}

		if s, isString := value.(string); isString && param.Type == "number" {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %q must be a number, got %q", key, s)
			}
			resolved[key] = n
		}
	}
	return resolved, nil
}

// ParameterRefs returns the distinct parameter names referenced in text, in
// order of first appearance.
func ParameterRefs(text string) []string {
	var names []string
	for _, m := range ParameterPattern.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}
