package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/richinex/kronologi/config"
	"github.com/richinex/kronologi/llm"
	"github.com/richinex/kronologi/observability"
)

// DefaultInstructions is used when a job has no instructions file.
const DefaultInstructions = `# Task

Generate a comprehensive summary report based on the available content.

## Approach

1. Use the available tools to explore and understand the content
2. Read relevant files and search for important information
3. Synthesize the information into a coherent summary
4. Focus on key insights, trends, and important events

## Output

Provide a well-structured markdown report with clear sections and headings.`

// Composer builds the initial messages of a job from its directory.
type Composer struct {
	jobDir string
	config config.JobConfig
	params map[string]any
	logger *slog.Logger
}

// NewComposer creates a composer for the job in jobDir. Params are extra
// parameter values supplied by the caller; the job's own period values are
// added on every Compose.
func NewComposer(jobDir string, cfg config.JobConfig, params map[string]any, logger *slog.Logger) *Composer {
	return &Composer{
		jobDir: jobDir,
		config: cfg,
		params: params,
		logger: observability.OrNop(logger),
	}
}

// Compose returns [system, user] for the job. The system message describes
// tools and content sources at the job's depth; the user message is the
// persona followed by the instructions, with parameters substituted.
func (c *Composer) Compose(job config.Job) ([]llm.Message, error) {
	values := maps.Clone(c.params)
	if values == nil {
		values = make(map[string]any)
	}
	maps.Copy(values, job.Values())

	params, err := c.config.ResolveParameters(values)
	if err != nil {
		return nil, err
	}

	persona, err := c.readTemplate(config.PersonaFile)
	if err != nil {
		return nil, err
	}
	instructions, err := c.readTemplate(config.InstructionsFile)
	if err != nil {
		return nil, err
	}
	if instructions == "" {
		c.logger.Warn("no instructions found, using default", "dir", c.jobDir)
		instructions = DefaultInstructions
	}

	var parts []string
	if persona != "" {
		parts = append(parts, persona)
	}
	parts = append(parts, instructions)
	user := Substitute(strings.Join(parts, "\n\n"), params)

	return []llm.Message{
		llm.SystemMessage(SystemMessage(c.config.ContentSources, job)),
		llm.UserMessage(user),
	}, nil
}

// readTemplate returns the trimmed file content, or "" when the file is
// missing.
func (c *Composer) readTemplate(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(c.jobDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("template not found", "file", name, "dir", c.jobDir)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Substitute replaces ${parameters.name} references with their values.
// References to unknown parameters are left unchanged.
func Substitute(text string, params map[string]any) string {
	return config.ParameterPattern.ReplaceAllStringFunc(text, func(ref string) string {
		name := config.ParameterPattern.FindStringSubmatch(ref)[1]
		value, ok := params[name]
		if !ok {
			return ref
		}
		return formatValue(value)
	})
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
