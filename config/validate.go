package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Prompt template files of a job directory.
const (
	PersonaFile      = "persona.md"
	InstructionsFile = "instructions.md"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one problem found in a job directory.
type Issue struct {
	Severity Severity
	Message  string
	Location string
}

// Validation is the outcome of ValidateJobDir.
type Validation struct {
	Issues []Issue
	Config *JobConfig
}

// Valid reports whether no error-level issue was found.
func (v Validation) Valid() bool {
	return !slices.ContainsFunc(v.Issues, func(i Issue) bool {
		return i.Severity == SeverityError
	})
}

func (v *Validation) add(s Severity, location, format string, args ...any) {
	v.Issues = append(v.Issues, Issue{Severity: s, Message: fmt.Sprintf(format, args...), Location: location})
}

// ValidateJobDir checks a job directory: the config file loads, prompt
// templates exist and every parameter a template references is declared.
func ValidateJobDir(dir string) Validation {
	var v Validation

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		v.add(SeverityError, "", "Job directory not found: %s", dir)
		return v
	}

	cfg, err := LoadJobConfig(dir)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			v.add(SeverityError, "", "Configuration file not found: %s", filepath.Join(dir, JobConfigFile))
		} else {
			v.add(SeverityError, JobConfigFile, "Failed to load configuration: %v", err)
		}
		return v
	}
	v.Config = &cfg

	for _, key := range cfg.ParameterNames() {
		p := cfg.Parameters[key]
		if p.Required != nil && *p.Required && p.Default != nil {
			v.add(SeverityWarning, JobConfigFile, "Parameter '%s' is marked as required but has a default value", key)
		}
	}

	declared := cfg.ParameterNames()
	builtin := []string{"year", "month", "week", "historyMonths", "summaryMonths", "historyWeeks", "summaryWeeks"}

	var used []string
	templates := 0
	for _, name := range []string{PersonaFile, InstructionsFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			v.add(SeverityWarning, "", "%s not found: %s", templateLabel(name), filepath.Join(dir, name))
			continue
		}
		templates++

		for _, ref := range ParameterRefs(string(data)) {
			if !slices.Contains(declared, ref) && !slices.Contains(builtin, ref) {
				v.add(SeverityError, name, "Parameter '%s' used in %s but not defined in %s", ref, name, JobConfigFile)
			}
			used = append(used, ref)
		}
	}

	if templates == 2 {
		for _, key := range declared {
			if !slices.Contains(used, key) {
				v.add(SeverityInfo, JobConfigFile, "Parameter '%s' is defined but never used in %s or %s", key, PersonaFile, InstructionsFile)
			}
		}
	}

	if cfg.ContentSources == (ContentSources{}) {
		v.add(SeverityInfo, JobConfigFile, "No content sources described; the model will only see directory names")
	}
	return v
}

func templateLabel(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ToUpper(base[:1]) + base[1:] + " file"
}
