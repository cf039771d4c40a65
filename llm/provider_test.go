// Security tests for LLM providers to ensure error messages don't leak API keys.
package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordedRequest captures what an adapter sent to the fake vendor.
type recordedRequest struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

// newVendorServer serves a canned JSON response and records every request.
func newVendorServer(t *testing.T, status int, body string) (*httptest.Server, *vendorLog) {
	t.Helper()
	log := &vendorLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recordedRequest{Path: r.URL.Path, Header: r.Header.Clone()}
		_ = json.Unmarshal(raw, &rec.Body)
		log.add(rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, log
}

type vendorLog struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (l *vendorLog) add(rec recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, rec)
}

// All returns a snapshot of the recorded requests.
func (l *vendorLog) All() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.requests...)
}

const unauthorizedBody = `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`

func assertNoKeyLeak(t *testing.T, vendor string, err error, key string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error with invalid API key", vendor)
	}
	errStr := err.Error()
	if strings.Contains(errStr, key) {
		t.Errorf("%s error message leaked API key: %v", vendor, errStr)
	}
	if strings.Contains(errStr, "Authorization:") || strings.Contains(errStr, "x-api-key:") {
		t.Errorf("%s error exposed auth header: %v", vendor, errStr)
	}
}

// TestOpenAIErrorNoAPIKeyLeak verifies OpenAI errors don't contain API keys
func TestOpenAIErrorNoAPIKeyLeak(t *testing.T) {
	server, _ := newVendorServer(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	testKey := "sk-test-invalid-key-12345xyz"
	provider := NewOpenAIProvider(testKey, "gpt-4o", 100, 0.7, WithBaseURL(server.URL+"/v1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Complete(ctx, []Message{UserMessage("test")})
	assertNoKeyLeak(t, "OpenAI", err, testKey)
}

// TestAnthropicErrorNoAPIKeyLeak verifies Anthropic errors don't contain API keys
func TestAnthropicErrorNoAPIKeyLeak(t *testing.T) {
	server, _ := newVendorServer(t, http.StatusUnauthorized, unauthorizedBody)
	testKey := "sk-ant-REDACTED"
	provider := NewAnthropicProvider(testKey, "claude-sonnet-4-20250514", 100, 0.7, WithBaseURL(server.URL+"/"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Complete(ctx, []Message{UserMessage("test")})
	assertNoKeyLeak(t, "Anthropic", err, testKey)
}

// TestDeepSeekErrorNoAPIKeyLeak verifies DeepSeek errors don't contain API keys
func TestDeepSeekErrorNoAPIKeyLeak(t *testing.T) {
	server, _ := newVendorServer(t, http.StatusUnauthorized, `{"error":{"message":"Authentication Fails","type":"authentication_error"}}`)
	testKey := "sk-test-invalid-key-12345xyz"
	provider := NewDeepSeekProvider(testKey, "deepseek-chat", 100, 0.7, WithBaseURL(server.URL+"/v1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Complete(ctx, []Message{UserMessage("test")})
	assertNoKeyLeak(t, "DeepSeek", err, testKey)
}

// TestToolCallErrorNoAPIKeyLeak verifies tool call errors don't leak API keys
func TestToolCallErrorNoAPIKeyLeak(t *testing.T) {
	server, _ := newVendorServer(t, http.StatusUnauthorized, unauthorizedBody)
	testKey := "sk-ant-REDACTED"
	provider := NewAnthropicProvider(testKey, "claude-sonnet-4-20250514", 100, 0.7, WithBaseURL(server.URL+"/"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tools := []ToolDefinition{
		{
			Name:        "test_tool",
			Description: "A test tool",
			Schema:      ToolSchema{Fields: []SchemaField{{Name: "q", Type: TypeString}}},
		},
	}

	_, _, err := provider.ExecuteWithTools(ctx, []Message{UserMessage("test")}, tools)
	assertNoKeyLeak(t, "Anthropic tools", err, testKey)
}

// TestGeminiInitErrorPreserved verifies Gemini returns initialization errors
func TestGeminiInitErrorPreserved(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	provider := NewGeminiProvider("", "gemini-2.0-flash", 100, 0.7)

	_, err := provider.Complete(context.Background(), []Message{UserMessage("test")})
	if err == nil {
		t.Fatal("Expected initialization error to be returned, got nil")
	}
	if !strings.Contains(err.Error(), "failed to initialize") {
		t.Errorf("Expected initialization error, got: %v", err)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		SystemMessage("persona"),
		UserMessage("hello"),
		SystemMessage("rules"),
		AssistantMessage("hi"),
	})

	if system != "persona\n\nrules" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 2 || rest[0].Role != RoleUser || rest[1].Role != RoleAssistant {
		t.Errorf("rest = %+v", rest)
	}
}
