package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/kronologi/llm"
	"github.com/richinex/kronologi/observability"
	"github.com/richinex/kronologi/tools"
)

// step is one scripted provider reply.
type step struct {
	resp  llm.CompletionResponse
	calls []llm.ToolCall
	err   error
}

// scriptedProvider replays steps in order and records the conversation it
// was sent on every call. Once the script runs out the last step repeats.
type scriptedProvider struct {
	steps    []step
	received [][]llm.Message
	tools    [][]llm.ToolDefinition
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-model" }

func (p *scriptedProvider) Complete(ctx context.Context, messages []llm.Message) (llm.CompletionResponse, error) {
	p.received = append(p.received, slices.Clone(messages))
	s := p.next()
	return s.resp, s.err
}

func (p *scriptedProvider) ExecuteWithTools(ctx context.Context, messages []llm.Message, defs []llm.ToolDefinition) (llm.CompletionResponse, []llm.ToolCall, error) {
	p.received = append(p.received, slices.Clone(messages))
	p.tools = append(p.tools, defs)
	s := p.next()
	return s.resp, s.calls, s.err
}

func (p *scriptedProvider) next() step {
	i := min(len(p.received)-1, len(p.steps)-1)
	return p.steps[i]
}

// completeOnly has no tool-use capability.
type completeOnly struct {
	calls int
}

func (p *completeOnly) Name() string  { return "plain" }
func (p *completeOnly) Model() string { return "plain-model" }

func (p *completeOnly) Complete(ctx context.Context, messages []llm.Message) (llm.CompletionResponse, error) {
	p.calls++
	return llm.CompletionResponse{Content: "ok", StopReason: llm.StopEndTurn}, nil
}

// recordingTool echoes its input and remembers every call.
type recordingTool struct {
	name  string
	calls []string
	err   error
}

func (t *recordingTool) Name() string        { return t.name }
func (t *recordingTool) Description() string { return "records calls" }

func (t *recordingTool) Schema() llm.ToolSchema {
	return llm.ToolSchema{Fields: []llm.SchemaField{
		{Name: "value", Type: llm.TypeString, Description: "anything", Optional: true},
	}}
}

func (t *recordingTool) Execute(ctx context.Context, input json.RawMessage, tc *tools.Context) (tools.Result, error) {
	t.calls = append(t.calls, string(input))
	if t.err != nil {
		return tools.Result{}, t.err
	}
	return tools.SuccessResult(t.name + ":" + string(input)), nil
}

func call(id, name, input string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Input: json.RawMessage(input)}
}

func final(content string) step {
	return step{resp: llm.CompletionResponse{
		Content:    content,
		StopReason: llm.StopEndTurn,
		Model:      "scripted-model",
		Usage:      llm.NewTokenUsage(10, 5),
	}}
}

func toolStep(content string, calls ...llm.ToolCall) step {
	return step{
		resp: llm.CompletionResponse{
			Content:    content,
			StopReason: llm.StopSequence,
			Model:      "scripted-model",
			Usage:      llm.NewTokenUsage(20, 3),
		},
		calls: calls,
	}
}

func newClient(t *testing.T, p llm.Provider, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithProvider(p), WithToolContext(&tools.Context{})}, opts...)
	c, err := New(llm.ReasoningConfig{Provider: "anthropic", Model: "unused"}, opts...)
	require.NoError(t, err)
	return c
}

var initial = []llm.Message{
	llm.SystemMessage("You summarize activity."),
	llm.UserMessage("Summarize January."),
}

func TestExecuteWithToolsNoToolCalls(t *testing.T) {
	p := &scriptedProvider{steps: []step{final("done")}}
	c := newClient(t, p)

	result, err := c.ExecuteWithTools(context.Background(), initial, nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "done", result.Content)
	assert.Equal(t, 1, result.Iterations)
	assert.NotNil(t, result.ToolCalls)
	assert.Empty(t, result.ToolCalls)
	assert.Equal(t, llm.StopEndTurn, result.StopReason)
	assert.Equal(t, initial, result.History)
	require.Len(t, p.received, 1)
}

func TestExecuteWithToolsReadsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2026-01"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2026-01", "notes.md"), []byte("Shipped the importer."), 0o644))

	tc := &tools.Context{Storage: tools.NewSandbox(root, "", "")}
	p := &scriptedProvider{steps: []step{
		toolStep("", call("c1", "read_file", `{"path":"2026-01/notes.md","directory":"activity"}`)),
		final("January: shipped the importer."),
	}}
	c := newClient(t, p, WithToolContext(tc))

	result, err := c.ExecuteWithTools(context.Background(), initial, tools.NewDefaultRegistry().List(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "read_file", result.ToolCalls[0].Name)
	assert.Equal(t, "January: shipped the importer.", result.Content)

	require.Len(t, p.received, 2)
	second := p.received[1]
	require.Len(t, second, len(initial)+2)
	assert.Equal(t, llm.AssistantMessage("Using tool: read_file"), second[2])
	assert.Equal(t, llm.RoleUser, second[3].Role)
	assert.Equal(t, `Tool result: {"success":true,"data":"Shipped the importer."}`, second[3].Content)

	assert.Equal(t, llm.NewTokenUsage(10, 5), result.Usage)
	assert.Equal(t, llm.NewTokenUsage(30, 8), result.TotalUsage)
}

func TestExecuteWithToolsUnknownTool(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		toolStep("", call("c1", "delete_everything", `{}`)),
		final("never reached"),
	}}
	c := newClient(t, p)

	_, err := c.ExecuteWithTools(context.Background(), initial, tools.NewDefaultRegistry().List(), RunOptions{})
	require.Error(t, err)
	assert.True(t, IsToolNotFound(err))
	assert.Contains(t, err.Error(), "delete_everything")
	assert.Len(t, p.received, 1)
}

func TestExecuteWithToolsWithoutCapability(t *testing.T) {
	p := &completeOnly{}
	c := newClient(t, p)

	_, err := c.ExecuteWithTools(context.Background(), initial, tools.NewDefaultRegistry().List(), RunOptions{})
	require.ErrorIs(t, err, ErrToolsUnsupported)
	assert.Contains(t, err.Error(), "plain")
	assert.Zero(t, p.calls)
}

func TestExecuteWithToolsWithoutToolContext(t *testing.T) {
	p := &scriptedProvider{steps: []step{final("done")}}
	c, err := New(llm.ReasoningConfig{}, WithProvider(p))
	require.NoError(t, err)

	_, err = c.ExecuteWithTools(context.Background(), initial, nil, RunOptions{})
	require.ErrorIs(t, err, ErrNoToolContext)
	assert.Empty(t, p.received)
}

func TestExecuteWithToolsIterationLimit(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		tool := &recordingTool{name: "probe"}
		p := &scriptedProvider{steps: []step{
			toolStep("still working", call("c", "probe", `{"value":"x"}`)),
		}}
		c := newClient(t, p)

		result, err := c.ExecuteWithTools(context.Background(), initial, []tools.Tool{tool}, RunOptions{MaxIterations: n})
		require.NoError(t, err)

		assert.Equal(t, n, result.Iterations)
		assert.Equal(t, llm.StopMaxTokens, result.StopReason)
		assert.Equal(t, "still working", result.Content)
		assert.Len(t, result.ToolCalls, n)
		assert.Len(t, p.received, n)
		assert.Len(t, tool.calls, n)
	}
}

func TestExecuteWithToolsDefaultIterationLimit(t *testing.T) {
	p := &scriptedProvider{steps: []step{toolStep("", call("c", "probe", `{}`))}}
	c := newClient(t, p)

	result, err := c.ExecuteWithTools(context.Background(), initial, []tools.Tool{&recordingTool{name: "probe"}}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, result.Iterations)
}

func TestExecuteWithToolsOrderAndGrowth(t *testing.T) {
	a := &recordingTool{name: "a"}
	b := &recordingTool{name: "b"}
	p := &scriptedProvider{steps: []step{
		toolStep("", call("1", "b", `{"value":"first"}`), call("2", "a", `{"value":"second"}`), call("3", "b", `{"value":"third"}`)),
		final("done"),
	}}

	var observed []string
	c := newClient(t, p)
	result, err := c.ExecuteWithTools(context.Background(), initial, []tools.Tool{a, b}, RunOptions{
		OnToolCall: func(call llm.ToolCall) { observed = append(observed, call.ID) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, observed)
	assert.Equal(t, []string{`{"value":"first"}`, `{"value":"third"}`}, b.calls)
	assert.Equal(t, []string{`{"value":"second"}`}, a.calls)

	require.Len(t, p.received, 2)
	assert.Len(t, p.received[1], len(initial)+2*3)
	assert.Equal(t, "Using tool: b", p.received[1][2].Content)
	assert.Equal(t, "Using tool: a", p.received[1][4].Content)
	assert.Equal(t, "Using tool: b", p.received[1][6].Content)
	assert.Contains(t, p.received[1][7].Content, "third")
	assert.Len(t, result.History, len(initial)+6)
}

func TestExecuteWithToolsDeclaresTools(t *testing.T) {
	p := &scriptedProvider{steps: []step{final("done")}}
	c := newClient(t, p)

	registry := tools.NewDefaultRegistry()
	_, err := c.ExecuteWithTools(context.Background(), initial, registry.GetMany([]string{"search_files", "read_file"}), RunOptions{})
	require.NoError(t, err)

	require.Len(t, p.tools, 1)
	require.Len(t, p.tools[0], 2)
	assert.Equal(t, "search_files", p.tools[0][0].Name)
	assert.Equal(t, "read_file", p.tools[0][1].Name)
}

func TestExecuteWithToolsIsDeterministic(t *testing.T) {
	run := func() Result {
		tool := &recordingTool{name: "probe"}
		p := &scriptedProvider{steps: []step{
			toolStep("", call("1", "probe", `{"value":"a"}`)),
			toolStep("", call("2", "probe", `{"value":"b"}`)),
			final("stable answer"),
		}}
		c := newClient(t, p)
		result, err := c.ExecuteWithTools(context.Background(), initial, []tools.Tool{tool}, RunOptions{})
		require.NoError(t, err)
		return result
	}

	first, second := run(), run()
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Iterations, second.Iterations)
	assert.Equal(t, first.History, second.History)
	assert.Equal(t, 3, first.Iterations)
}

func TestExecuteWithToolsDoesNotMutateInitial(t *testing.T) {
	msgs := slices.Clone(initial)
	p := &scriptedProvider{steps: []step{
		toolStep("", call("1", "probe", `{}`)),
		final("done"),
	}}
	c := newClient(t, p)

	_, err := c.ExecuteWithTools(context.Background(), msgs, []tools.Tool{&recordingTool{name: "probe"}}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, initial, msgs)
}

func TestExecuteWithToolsToolError(t *testing.T) {
	boom := errors.New("disk on fire")
	p := &scriptedProvider{steps: []step{
		toolStep("", call("1", "probe", `{}`)),
		final("never reached"),
	}}
	c := newClient(t, p)

	_, err := c.ExecuteWithTools(context.Background(), initial, []tools.Tool{&recordingTool{name: "probe", err: boom}}, RunOptions{})
	require.ErrorIs(t, err, boom)
	assert.True(t, IsToolExecution(err))
	assert.Len(t, p.received, 1)
}

func TestExecuteWithToolsInvalidArgumentsBecomeFailure(t *testing.T) {
	p := &scriptedProvider{steps: []step{
		toolStep("", call("1", "read_file", `{"directory":"activity"}`)),
		final("recovered"),
	}}
	c := newClient(t, p, WithToolContext(&tools.Context{Storage: tools.NewSandbox(t.TempDir(), "", "")}))

	result, err := c.ExecuteWithTools(context.Background(), initial, tools.NewDefaultRegistry().List(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Content)
	assert.Contains(t, p.received[1][3].Content, `"success":false`)
	assert.Contains(t, p.received[1][3].Content, "invalid arguments: missing properties: 'path'")
}

func TestExecuteWithToolsProviderError(t *testing.T) {
	vendorErr := errors.New("anthropic completion failed: 500")
	p := &scriptedProvider{steps: []step{{err: vendorErr}}}
	c := newClient(t, p)

	_, err := c.ExecuteWithTools(context.Background(), initial, nil, RunOptions{})
	assert.Equal(t, vendorErr, err)
}

func TestExecuteWithToolsCancelledBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tool := &recordingTool{name: "probe"}
	p := &scriptedProvider{steps: []step{toolStep("", call("1", "probe", `{}`))}}
	c := newClient(t, p)

	_, err := c.ExecuteWithTools(ctx, initial, []tools.Tool{tool}, RunOptions{
		OnToolCall: func(llm.ToolCall) { cancel() },
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.received, 1)
	assert.Len(t, tool.calls, 1)
}

func TestExecuteWithToolsRecordsMetrics(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	p := &scriptedProvider{steps: []step{
		toolStep("", call("1", "probe", `{}`), call("2", "probe", `{"value":1}`)),
		final("done"),
	}}
	c := newClient(t, p, WithMetrics(m))

	_, err := c.ExecuteWithTools(context.Background(), initial, []tools.Tool{&recordingTool{name: "probe"}}, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("probe", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("probe", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("scripted", "scripted-model", "success")))
}

func TestComplete(t *testing.T) {
	p := &scriptedProvider{steps: []step{final("one shot")}}
	c := newClient(t, p)

	resp, err := c.Complete(context.Background(), initial)
	require.NoError(t, err)
	assert.Equal(t, "one shot", resp.Content)
	assert.Equal(t, initial, p.received[0])
}

func TestNewBuildsProviderWithoutNetwork(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic"} {
		c, err := New(llm.ReasoningConfig{Provider: provider, Model: "m", APIKey: "sk-test"},
			WithClientOptions(llm.WithBaseURL("http://127.0.0.1:1/")))
		require.NoError(t, err, provider)
		assert.Equal(t, "m", c.Provider().Model())
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(llm.ReasoningConfig{Provider: "llama", Model: "m", APIKey: "k"})
	require.ErrorIs(t, err, llm.ErrUnknownProvider)
}
