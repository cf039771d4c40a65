// Package prompt composes the initial conversation of a report run.
//
// The model never receives activity content inline. The system message
// tells it which tools exist and which content sources it may explore;
// the user message carries the job's persona and instructions.
package prompt

import (
	"fmt"
	"strings"

	"github.com/richinex/kronologi/config"
)

const toolGuidance = `You are an intelligent analysis assistant with access to tools for exploring content.

# Your Tools

- **list_files**: List files in a directory with optional pattern matching
  - Use to see what files are available
  - Supports glob patterns (e.g., "*.md", "**/*.md")
- **read_file**: Read the contents of a specific file
  - Reads from the activity, summary, or context directory
- **search_files**: Search for text across files
  - Searches file content, not just names
  - Returns matching files with the matching lines

# Your Approach

1. **Explore First**: Use ` + "`list_files`" + ` to understand what content is available
2. **Search Strategically**: Use ` + "`search_files`" + ` to find relevant content before reading everything
3. **Read Selectively**: Only read files that are relevant to the task
4. **Iterate**: Make multiple tool calls to refine your understanding
5. **Synthesize**: Once you have sufficient information, complete the task

# Important

The user's instructions describe WHAT to do: the task, its requirements and the output format.
Use your tools to explore content, then deliver the requested output.
If there is nothing worth reporting for the period, reply with an empty message.`

// SystemMessage builds the system prompt for a job at its current depth.
// History and summary sections advertise job.HistoryDepth and
// job.SummaryDepth periods and are left out when the depth is zero.
func SystemMessage(sources config.ContentSources, job config.Job) string {
	sections := []string{toolGuidance}

	var described []string
	if s := sources.Activity; s != nil {
		described = append(described, describe("Activity Files", s, "activity",
			fmt.Sprintf("- Current period: %s, under `%s`", job.Label(), periodPath(s.Directory, job.Year, job.Period()))))
	}
	if s := sources.History; s != nil && job.HistoryDepth > 0 {
		described = append(described, describe("Historical Content", s, "activity",
			fmt.Sprintf("- Historical depth: previous %d %s", job.HistoryDepth, unit(job)),
			"- Earlier periods sit next to the current one, one directory per period"))
	}
	if s := sources.Summaries; s != nil && job.SummaryDepth > 0 {
		described = append(described, describe("Previous Summaries", s, "summary",
			fmt.Sprintf("- Summaries available: previous %d %s", job.SummaryDepth, unit(job)),
			"- Previous summaries help provide continuity and track progress over time"))
	}
	if s := sources.Context; s != nil {
		described = append(described, describe("Context Files", s, "context",
			"- Read these early to understand guidelines and requirements"))
	}

	if len(described) > 0 {
		sections = append(sections, "# Available Content Sources")
		sections = append(sections, described...)
	}
	return strings.Join(sections, "\n\n")
}

func describe(title string, s *config.ContentSource, root string, extra ...string) string {
	lines := []string{"## " + title}
	if s.Description != "" {
		lines = append(lines, s.Description)
	}
	location := "the top level"
	if s.Directory != "" {
		location = "`" + s.Directory + "`"
	}
	lines = append(lines, fmt.Sprintf(`- Directory: directory="%s", below %s`, root, location))
	if len(s.Patterns) > 0 {
		lines = append(lines, "- Patterns: "+strings.Join(s.Patterns, ", "))
	}
	lines = append(lines, extra...)
	lines = append(lines, fmt.Sprintf(`- Use `+"`list_files`"+` and `+"`read_file`"+` with directory="%s"`, root))
	return strings.Join(lines, "\n")
}

func periodPath(dir string, year int, period string) string {
	p := fmt.Sprintf("%d/%s", year, period)
	if dir != "" {
		p = strings.TrimSuffix(dir, "/") + "/" + p
	}
	return p
}

func unit(job config.Job) string {
	if job.PeriodType() == config.PeriodWeek {
		return "weeks"
	}
	return "months"
}
