package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/orgdesk/modelgate/internal/db"
	"github.com/orgdesk/modelgate/internal/gateway"
	"github.com/orgdesk/modelgate/internal/metering"
	"github.com/orgdesk/modelgate/internal/models"
	"github.com/orgdesk/modelgate/internal/pricing"
	"github.com/orgdesk/modelgate/internal/provider"
	"github.com/orgdesk/modelgate/internal/report"
	"github.com/orgdesk/modelgate/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
}

const upstreamChatResponse = `{
  "choices": [{"message": {"role": "assistant", "content": "hello there"}}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5}
}`

// newTestRouter wires the full route table over an httptest upstream and an
// in-memory database, mirroring how the server assembles things at boot.
func newTestRouter(t *testing.T, upstream http.HandlerFunc) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	usageStore := store.New(conn)

	registry := provider.NewRegistryFromAdapters(
		provider.ChatCompletionAdapter(provider.NameDeepSeek, server.URL),
	)
	gw := gateway.New(registry, gateway.NewExecutor(server.Client()), metering.NewRecorder(usageStore), time.Second)

	engine := gin.New()
	RegisterRoutes(engine, gw, usageStore, pricing.NewTable(), report.NewExporter(filepath.Join(t.TempDir(), "dept-reports")))
	return engine, usageStore
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	var env envelope
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &env); errDecode != nil {
		t.Fatalf("decode envelope from %q: %v", recorder.Body.String(), errDecode)
	}
	return recorder, env
}

func seedRecord(t *testing.T, usageStore *store.Store, providerName, model, sourceType, sourceLabel string, prompt, completion, total int64) {
	t.Helper()
	record := models.UsageRecord{
		RecordedAt:       time.Now().UTC(),
		Provider:         providerName,
		Model:            model,
		SourceType:       sourceType,
		SourceLabel:      sourceLabel,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
	if errAppend := usageStore.Append(context.Background(), &record); errAppend != nil {
		t.Fatalf("seed record: %v", errAppend)
	}
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestRouter(t, func(http.ResponseWriter, *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestProvidersList(t *testing.T) {
	engine, _ := newTestRouter(t, func(http.ResponseWriter, *http.Request) {})

	recorder, env := doRequest(t, engine, http.MethodGet, "/api/ai/providers", "")
	if recorder.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response %d: %s", recorder.Code, recorder.Body.String())
	}

	var names []string
	if errDecode := json.Unmarshal(env.Data, &names); errDecode != nil {
		t.Fatalf("decode data: %v", errDecode)
	}
	if len(names) != 1 || names[0] != provider.NameDeepSeek {
		t.Fatalf("unexpected providers: %v", names)
	}
}

func TestChatSuccessPersistsUsage(t *testing.T) {
	engine, usageStore := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(upstreamChatResponse))
	})

	recorder, env := doRequest(t, engine, http.MethodPost, "/api/ai/chat", `{
		"provider": "deepseek",
		"model": "deepseek-chat",
		"apiKey": "sk-test",
		"messages": [{"role": "user", "content": "hi"}],
		"source": {"type": "project", "projectName": "atlas"}
	}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", recorder.Body.String())
	}

	var result struct {
		Content string `json:"content"`
		Usage   struct {
			PromptTokens     int64 `json:"promptTokens"`
			CompletionTokens int64 `json:"completionTokens"`
			TotalTokens      int64 `json:"totalTokens"`
		} `json:"usage"`
	}
	if errDecode := json.Unmarshal(env.Data, &result); errDecode != nil {
		t.Fatalf("decode data: %v", errDecode)
	}
	if result.Content != "hello there" || result.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected result: %+v", result)
	}

	records, errAll := usageStore.All(context.Background())
	if errAll != nil {
		t.Fatalf("all: %v", errAll)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SourceType != models.SourceTypeProject || records[0].SourceLabel != "atlas" {
		t.Fatalf("unexpected source: %s / %s", records[0].SourceType, records[0].SourceLabel)
	}
}

func TestChatErrorMapping(t *testing.T) {
	engine, usageStore := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	})

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			body:       `{"provider": `,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "missing model",
			body:       `{"provider": "deepseek", "messages": [{"role": "user", "content": "hi"}], "apiKey": "k"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "missing api key",
			body:       `{"provider": "deepseek", "model": "deepseek-chat", "messages": [{"role": "user", "content": "hi"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "API_KEY_REQUIRED",
		},
		{
			name:       "unknown provider",
			body:       `{"provider": "mystery", "model": "m", "messages": [{"role": "user", "content": "hi"}], "apiKey": "k"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_PROVIDER",
		},
		{
			name:       "upstream failure",
			body:       `{"provider": "deepseek", "model": "deepseek-chat", "messages": [{"role": "user", "content": "hi"}], "apiKey": "k"}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder, env := doRequest(t, engine, http.MethodPost, "/api/ai/chat", tc.body)
			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
			if env.Success {
				t.Fatalf("expected failure envelope, got %s", recorder.Body.String())
			}
			if env.Error == nil || env.Error.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, recorder.Body.String())
			}
		})
	}

	count, errCount := usageStore.Count(context.Background())
	if errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("failed calls must not be metered, found %d records", count)
	}
}

func TestAssistantIntent(t *testing.T) {
	engine, usageStore := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"tool\":\"open_finance_report\",\"args\":{\"range\":\"last_7_days\"},\"reply\":\"Opening the finance report.\"}"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30}
		}`))
	})

	recorder, env := doRequest(t, engine, http.MethodPost, "/api/assistant", `{
		"provider": "deepseek",
		"model": "deepseek-chat",
		"apiKey": "sk-test",
		"message": "show me last week's model spend"
	}`)
	if recorder.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response %d: %s", recorder.Code, recorder.Body.String())
	}

	var intent struct {
		Tool  string          `json:"tool"`
		Args  json.RawMessage `json:"args"`
		Reply string          `json:"reply"`
	}
	if errDecode := json.Unmarshal(env.Data, &intent); errDecode != nil {
		t.Fatalf("decode data: %v", errDecode)
	}
	if intent.Tool != "open_finance_report" {
		t.Fatalf("expected open_finance_report, got %q", intent.Tool)
	}
	if intent.Reply != "Opening the finance report." {
		t.Fatalf("unexpected reply: %q", intent.Reply)
	}

	records, errAll := usageStore.All(context.Background())
	if errAll != nil {
		t.Fatalf("all: %v", errAll)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SourceType != models.SourceTypeAssistant || records[0].SourceLabel != "assistant" {
		t.Fatalf("unexpected source: %s / %s", records[0].SourceType, records[0].SourceLabel)
	}
}

func TestAssistantIntentDegradesToDefaultReply(t *testing.T) {
	engine, _ := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "plain prose, not JSON"}}],
			"usage": {"prompt_tokens": 80, "completion_tokens": 12}
		}`))
	})

	recorder, env := doRequest(t, engine, http.MethodPost, "/api/assistant", `{
		"provider": "deepseek",
		"model": "deepseek-chat",
		"apiKey": "sk-test",
		"message": "hello"
	}`)
	if recorder.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response %d: %s", recorder.Code, recorder.Body.String())
	}

	var intent struct {
		Tool  string `json:"tool"`
		Reply string `json:"reply"`
	}
	if errDecode := json.Unmarshal(env.Data, &intent); errDecode != nil {
		t.Fatalf("decode data: %v", errDecode)
	}
	if intent.Tool != "default_reply" || intent.Reply != "plain prose, not JSON" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestReportsSummary(t *testing.T) {
	engine, usageStore := newTestRouter(t, func(http.ResponseWriter, *http.Request) {})

	seedRecord(t, usageStore, "deepseek", "deepseek-chat", models.SourceTypeEmployee, "Alice", 10, 5, 15)
	seedRecord(t, usageStore, "deepseek", "deepseek-chat", models.SourceTypeEmployee, "Alice", 100, 85, 185)
	seedRecord(t, usageStore, "qwen", "qwen-max", models.SourceTypeUnknown, "", 500, 300, 800)

	recorder, env := doRequest(t, engine, http.MethodGet, "/api/reports/usage", "")
	if recorder.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response %d: %s", recorder.Code, recorder.Body.String())
	}

	var summary struct {
		ByProviderModel []struct {
			Provider    string  `json:"provider"`
			Model       string  `json:"model"`
			TotalTokens int64   `json:"total_tokens"`
			TotalCost   float64 `json:"total_cost"`
		} `json:"byProviderModel"`
		BySource []struct {
			Type      string  `json:"type"`
			Label     string  `json:"label"`
			TotalCost float64 `json:"total_cost"`
		} `json:"bySource"`
	}
	if errDecode := json.Unmarshal(env.Data, &summary); errDecode != nil {
		t.Fatalf("decode data: %v", errDecode)
	}

	if len(summary.ByProviderModel) != 2 {
		t.Fatalf("expected 2 provider-model rows, got %d", len(summary.ByProviderModel))
	}
	row := summary.ByProviderModel[0]
	if row.Provider != "deepseek" || row.TotalTokens != 200 {
		t.Fatalf("unexpected first row: %+v", row)
	}
	// 200 tokens at 0.01 per 1K.
	if row.TotalCost != 0.002 {
		t.Fatalf("expected cost 0.002, got %v", row.TotalCost)
	}

	if len(summary.BySource) != 2 {
		t.Fatalf("expected 2 source rows, got %d", len(summary.BySource))
	}
	unknown := summary.BySource[1]
	if unknown.Label != "unattributed" {
		t.Fatalf("expected unattributed label, got %q", unknown.Label)
	}
	// 800 tokens at the flat 0.02 per 1K rate.
	if unknown.TotalCost != 0.016 {
		t.Fatalf("expected flat-rate cost 0.016, got %v", unknown.TotalCost)
	}
}

func TestReportsRecords(t *testing.T) {
	engine, usageStore := newTestRouter(t, func(http.ResponseWriter, *http.Request) {})
	seedRecord(t, usageStore, "openai", "gpt-4o", models.SourceTypeDepartment, "R&D", 1, 2, 3)

	recorder, env := doRequest(t, engine, http.MethodGet, "/api/reports/usage/records", "")
	if recorder.Code != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response %d: %s", recorder.Code, recorder.Body.String())
	}

	var records []models.UsageRecord
	if errDecode := json.Unmarshal(env.Data, &records); errDecode != nil {
		t.Fatalf("decode data: %v", errDecode)
	}
	if len(records) != 1 || records[0].Model != "gpt-4o" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestReportsExports(t *testing.T) {
	engine, usageStore := newTestRouter(t, func(http.ResponseWriter, *http.Request) {})
	seedRecord(t, usageStore, "deepseek", "deepseek-chat", models.SourceTypeEmployee, "Alice", 10, 5, 15)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/usage/export/doc", nil)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("doc export: expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/msword; charset=utf-8" {
		t.Fatalf("doc export: unexpected content type %q", got)
	}
	if disposition := recorder.Header().Get("Content-Disposition"); disposition == "" {
		t.Fatal("doc export: missing Content-Disposition")
	}
	if !bytes.HasPrefix(recorder.Body.Bytes(), []byte(`{\rtf1`)) {
		t.Fatalf("doc export: payload is not RTF: %q", recorder.Body.String()[:min(40, recorder.Body.Len())])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/reports/usage/export/sheet", nil)
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("sheet export: expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("sheet export: unexpected content type %q", got)
	}
	book, errOpen := excelize.OpenReader(bytes.NewReader(recorder.Body.Bytes()))
	if errOpen != nil {
		t.Fatalf("sheet export: payload is not a workbook: %v", errOpen)
	}
	defer func() { _ = book.Close() }()
	if sheets := book.GetSheetList(); len(sheets) != 2 {
		t.Fatalf("sheet export: expected 2 sheets, got %v", sheets)
	}
}
