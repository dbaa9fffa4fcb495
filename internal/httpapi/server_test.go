package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"horse.fit/voxlate/internal/auth"
	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/history"
	"horse.fit/voxlate/internal/kvstore"
	"horse.fit/voxlate/internal/reader"
	"horse.fit/voxlate/internal/settings"
	"horse.fit/voxlate/internal/translation"
	"horse.fit/voxlate/internal/usage"
)

type stubTranslator struct {
	mu        sync.Mutex
	requests  []translation.Request
	result    *translation.Result
	err       error
	all       []translation.Result
	detection *translation.Detection
	detectErr error
	testErr   error
	testNames []string
}

func (s *stubTranslator) Translate(_ context.Context, req translation.Request) (*translation.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if strings.TrimSpace(req.Text) == "" {
		return nil, translation.ErrEmptyText
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubTranslator) TranslateAll(_ context.Context, req translation.Request) ([]translation.Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, translation.ErrEmptyText
	}
	return s.all, nil
}

func (s *stubTranslator) DetectLanguage(context.Context, string) (*translation.Detection, error) {
	return s.detection, s.detectErr
}

func (s *stubTranslator) AvailableProviders() []translation.ProviderInfo {
	return []translation.ProviderInfo{
		{Name: "google", DisplayName: "Google Translate", CanDetect: true},
		{Name: "mymemory", DisplayName: "MyMemory"},
	}
}

func (s *stubTranslator) TestProvider(_ context.Context, name, text string) (*translation.Result, error) {
	s.mu.Lock()
	s.testNames = append(s.testNames, name+":"+text)
	s.mu.Unlock()
	if name == "nope" {
		return nil, translation.ErrUnknownProvider
	}
	if s.testErr != nil {
		return nil, s.testErr
	}
	return &translation.Result{Success: true, Translation: "مرحبا", API: name, Confidence: 0.9, Alternatives: []string{}}, nil
}

func (s *stubTranslator) TestAllProviders(context.Context, string) map[string]translation.ProviderTestResult {
	return map[string]translation.ProviderTestResult{
		"google":   {Result: &translation.Result{Success: true, Translation: "مرحبا", API: "google"}},
		"deepl":    {Error: "provider not available"},
		"mymemory": {Result: &translation.Result{Success: true, Translation: "مرحبا", API: "mymemory"}},
	}
}

type stubReader struct {
	page *reader.Page
	err  error
}

func (r *stubReader) Fetch(context.Context, string) (*reader.Page, error) {
	return r.page, r.err
}

type jsendEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, translator *stubTranslator, opts Options) (*Server, *settings.Store) {
	t.Helper()

	kv := kvstore.NewMemoryStore()
	bus := events.NewBus(zerolog.Nop())
	settingsStore := settings.NewStore(kv, bus, zerolog.Nop(), settings.Defaults())
	if _, err := settingsStore.Load(context.Background()); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	usageLogger := usage.NewLogger(kv, nil, zerolog.Nop(), 10)
	usageLogger.Record(context.Background(), translation.UsageTranslationSuccess, map[string]any{"api": "google"})

	server := NewServer(Deps{
		Translator: translator,
		Settings:   settingsStore,
		Usage:      usageLogger,
		History:    history.NewStore(kv, zerolog.Nop(), 10),
		Reader:     &stubReader{page: &reader.Page{URL: "https://example.com/a", Title: "Title", Text: "Page body", Chars: 9}},
		Bus:        bus,
		Latency:    translation.NewLatencyStats(),
	}, zerolog.Nop(), opts)
	return server, settingsStore
}

func doRequest(t *testing.T, e *echo.Echo, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, jsendEnvelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var envelope jsendEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, envelope
}

func TestTranslateReturnsResultWithCallerIdentity(t *testing.T) {
	t.Parallel()

	translator := &stubTranslator{result: &translation.Result{
		Success: true, Translation: "مرحبا", Confidence: 0.9, API: "google", Alternatives: []string{},
	}}
	server, _ := newTestServer(t, translator, Options{})

	rec, envelope := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate",
		`{"text":"Hello","source_lang":"en","target_lang":"ar"}`, map[string]string{headerUserID: "u-42"})
	if rec.Code != http.StatusOK || envelope.Status != "success" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}

	var result translation.Result
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Translation != "مرحبا" || result.API != "google" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(translator.requests) != 1 || translator.requests[0].UserID != "u-42" || translator.requests[0].TargetLang != "ar" {
		t.Fatalf("unexpected forwarded request: %+v", translator.requests)
	}
}

func TestTranslateDefaultsToAnonymousUser(t *testing.T) {
	t.Parallel()

	translator := &stubTranslator{result: &translation.Result{Success: true, Translation: "Hola", API: "google"}}
	server, _ := newTestServer(t, translator, Options{})

	doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate", `{"text":"Hello","target_lang":"es"}`, nil)
	if translator.requests[0].UserID != auth.AnonymousUser {
		t.Fatalf("expected anonymous user, got %q", translator.requests[0].UserID)
	}
}

func TestTranslateAsyncPublishesRequest(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{})
	requested := make(chan translation.RequestedEvent, 1)
	events.Subscribe(server.deps.Bus, translation.TopicTranslationRequested, func(event translation.RequestedEvent) {
		requested <- event
	})

	rec, envelope := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate/async",
		`{"text":"Hello","source_lang":"en","target_lang":"ar"}`, map[string]string{headerUserID: "u-7"})
	if rec.Code != http.StatusAccepted || envelope.Status != "success" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(string(envelope.Data), translation.TopicTranslationResult.Name()) {
		t.Fatalf("expected result topic in response, got %s", envelope.Data)
	}

	select {
	case event := <-requested:
		if event.Text != "Hello" || event.TargetLang != "ar" || event.UserID != "u-7" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("translation request was not published")
	}

	rec, _ = doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate/async", `{"text":"Hello"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected validation failure, got %d", rec.Code)
	}
}

func TestTranslateValidationFailure(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{})
	rec, envelope := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate", `{"text":"   ","target_lang":"ar"}`, nil)
	if rec.Code != http.StatusBadRequest || envelope.Status != "fail" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(string(envelope.Data), `"text"`) {
		t.Fatalf("expected text field error, got %s", envelope.Data)
	}
}

func TestTranslateAllProvidersFailed(t *testing.T) {
	t.Parallel()

	translator := &stubTranslator{err: &translation.ChainError{Attempts: []*translation.AttemptError{
		{Provider: "google", Err: errors.New("Google Translate API error: 500")},
		{Provider: "mymemory", Err: errors.New("MyMemory API error: 429")},
	}}}
	server, _ := newTestServer(t, translator, Options{})

	rec, envelope := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate", `{"text":"Hello","target_lang":"ar"}`, nil)
	if rec.Code != http.StatusBadGateway || envelope.Status != "error" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	if envelope.Message != "all translation providers failed" {
		t.Fatalf("unexpected message: %q", envelope.Message)
	}

	var failures []attemptFailure
	if err := json.Unmarshal(envelope.Data, &failures); err != nil {
		t.Fatalf("decode failures: %v", err)
	}
	if len(failures) != 2 || failures[0].Provider != "google" || failures[1].Provider != "mymemory" {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestTranslateAllReturnsSuccessesOnly(t *testing.T) {
	t.Parallel()

	translator := &stubTranslator{all: []translation.Result{
		{Success: true, Translation: "مرحبا", API: "google"},
		{Success: true, Translation: "أهلا", API: "mymemory"},
	}}
	server, _ := newTestServer(t, translator, Options{})

	rec, envelope := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate/all", `{"text":"Hello","target_lang":"ar"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Results []translation.Result `json:"results"`
		Count   int                  `json:"count"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Count != 2 || data.Results[1].API != "mymemory" {
		t.Fatalf("unexpected data: %+v", data)
	}
}

func TestTranslateURLTranslatesExtractedText(t *testing.T) {
	t.Parallel()

	translator := &stubTranslator{result: &translation.Result{Success: true, Translation: "نص الصفحة", API: "google"}}
	server, _ := newTestServer(t, translator, Options{})

	rec, envelope := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate/url",
		`{"url":"https://example.com/a","target_lang":"ar"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	var data translateURLResponse
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Page.Title != "Title" || data.Page.Chars != 9 || data.Result.Translation != "نص الصفحة" {
		t.Fatalf("unexpected data: %+v", data)
	}
	if translator.requests[0].Text != "Page body" {
		t.Fatalf("expected page text to be translated, got %q", translator.requests[0].Text)
	}
}

func TestTranslateURLRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{})
	server.deps.Reader = &stubReader{err: reader.ErrInvalidURL}

	rec, _ := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/translate/url", `{"url":"ftp://x","target_lang":"ar"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	translator := &stubTranslator{detection: &translation.Detection{API: "google", Language: "fr", Confidence: 0.8}}
	server, _ := newTestServer(t, translator, Options{})

	rec, envelope := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/detect", `{"text":"Bonjour"}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(envelope.Data), `"fr"`) {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}

	translator.detection = nil
	translator.detectErr = translation.ErrDetectionFailed
	rec, _ = doRequest(t, server.Handler(), http.MethodPost, "/api/v1/detect", `{"text":"Bonjour"}`, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestProvidersListsDisplayNamesAndFallbackChain(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{})
	rec, envelope := doRequest(t, server.Handler(), http.MethodGet, "/api/v1/providers", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var data struct {
		Providers []translation.ProviderInfo `json:"providers"`
		Fallback  []string                   `json:"fallback"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Providers) != 2 || data.Providers[0].DisplayName != "Google Translate" {
		t.Fatalf("unexpected providers: %+v", data.Providers)
	}
	if strings.Join(data.Fallback, ",") != "google,microsoft,deepl,libretranslate,mymemory" {
		t.Fatalf("unexpected fallback chain: %v", data.Fallback)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashTokenWithCost("let-me-in", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	translator := &stubTranslator{}
	server, _ := newTestServer(t, translator, Options{AdminTokenHash: hash})
	e := server.Handler()

	rec, _ := doRequest(t, e, http.MethodPost, "/api/v1/providers/google/test", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec, _ = doRequest(t, e, http.MethodPost, "/api/v1/providers/google/test", "", map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	rec, envelope := doRequest(t, e, http.MethodPost, "/api/v1/providers/google/test", "", map[string]string{"Authorization": "Bearer let-me-in"})
	if rec.Code != http.StatusOK || !strings.Contains(string(envelope.Data), "مرحبا") {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	if len(translator.testNames) != 1 || translator.testNames[0] != "google:"+translation.DefaultTestText {
		t.Fatalf("unexpected test calls: %v", translator.testNames)
	}
}

func TestAdminRoutesWithoutHash(t *testing.T) {
	t.Parallel()

	closed, _ := newTestServer(t, &stubTranslator{}, Options{})
	rec, _ := doRequest(t, closed.Handler(), http.MethodPost, "/api/v1/providers/test", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when admin is not configured, got %d", rec.Code)
	}

	open, _ := newTestServer(t, &stubTranslator{}, Options{AllowUnauthenticatedAdmin: true})
	rec, envelope := doRequest(t, open.Handler(), http.MethodPost, "/api/v1/providers/test", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(envelope.Data), `"deepl"`) {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestTestProviderErrors(t *testing.T) {
	t.Parallel()

	translator := &stubTranslator{}
	server, _ := newTestServer(t, translator, Options{AllowUnauthenticatedAdmin: true})
	e := server.Handler()

	rec, _ := doRequest(t, e, http.MethodPost, "/api/v1/providers/nope/test", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown provider, got %d", rec.Code)
	}

	translator.testErr = translation.ErrProviderUnavailable
	rec, _ = doRequest(t, e, http.MethodPost, "/api/v1/providers/deepl/test", `{"text":"Good morning"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unavailable provider, got %d", rec.Code)
	}
	if translator.testNames[len(translator.testNames)-1] != "deepl:Good morning" {
		t.Fatalf("expected custom test text, got %v", translator.testNames)
	}
}

func TestSettingsAreRedactedAndUpdated(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, &stubTranslator{}, Options{AllowUnauthenticatedAdmin: true})
	e := server.Handler()

	rec, envelope := doRequest(t, e, http.MethodPut, "/api/v1/settings",
		`{"primaryAPI":"deepl","deepl":{"apiKey":"secret-key-1234"}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(string(envelope.Data), "secret-key-1234") || !strings.Contains(string(envelope.Data), "****1234") {
		t.Fatalf("expected redacted key, got %s", envelope.Data)
	}

	current := store.Current()
	if current.PrimaryAPI != "deepl" || current.DeepL.APIKey != "secret-key-1234" || !current.EnableFallback {
		t.Fatalf("unexpected stored settings: %+v", current)
	}

	rec, envelope = doRequest(t, e, http.MethodGet, "/api/v1/settings", "", nil)
	if rec.Code != http.StatusOK || strings.Contains(string(envelope.Data), "secret-key-1234") {
		t.Fatalf("unexpected settings response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSettingsWrittenBackKeepStoredSecrets(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, &stubTranslator{}, Options{AllowUnauthenticatedAdmin: true})
	e := server.Handler()

	doRequest(t, e, http.MethodPut, "/api/v1/settings", `{"deepl":{"apiKey":"secret-key-1234"}}`, nil)

	_, envelope := doRequest(t, e, http.MethodGet, "/api/v1/settings", "", nil)
	var document map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Data, &document); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	document["primaryAPI"] = json.RawMessage(`"deepl"`)
	body, err := json.Marshal(document)
	if err != nil {
		t.Fatalf("encode settings: %v", err)
	}

	rec, _ := doRequest(t, e, http.MethodPut, "/api/v1/settings", string(body), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	current := store.Current()
	if current.PrimaryAPI != "deepl" || current.DeepL.APIKey != "secret-key-1234" {
		t.Fatalf("unexpected stored settings: %+v", current)
	}
}

func TestSettingsRejectsInvalidPatch(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, &stubTranslator{}, Options{AllowUnauthenticatedAdmin: true})
	rec, envelope := doRequest(t, server.Handler(), http.MethodPut, "/api/v1/settings", `{"primaryAPI":"babelfish"}`, nil)
	if rec.Code != http.StatusBadRequest || envelope.Status != "fail" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	if store.Current().PrimaryAPI != translation.DefaultPrimaryProvider {
		t.Fatalf("settings changed after invalid patch: %+v", store.Current())
	}
}

func TestStatsIncludesUsageAndLatency(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{})
	rec, envelope := doRequest(t, server.Handler(), http.MethodGet, "/api/v1/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var data struct {
		Usage   usage.Stats                   `json:"usage"`
		Latency []translation.LatencySnapshot `json:"latency"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Usage.Counters[translation.UsageTranslationSuccess] != 1 || data.Usage.Total != 1 {
		t.Fatalf("unexpected usage: %+v", data.Usage)
	}
	if data.Latency == nil {
		t.Fatalf("expected empty latency list, got nil")
	}
}

func TestTranslationsHistoryLifecycle(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{AllowUnauthenticatedAdmin: true})
	e := server.Handler()

	rec, _ := doRequest(t, e, http.MethodPost, "/api/v1/translations",
		`{"text":"Hello","translation":"مرحبا","source_lang":"en","target_lang":"ar","api":"google","confidence":0.9}`,
		map[string]string{headerUserID: "u-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = doRequest(t, e, http.MethodPost, "/api/v1/translations", `{"text":"Hello"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected validation failure, got %d", rec.Code)
	}

	rec, envelope := doRequest(t, e, http.MethodGet, "/api/v1/translations?limit=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var page struct {
		Items []history.Entry `json:"items"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(envelope.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || page.Items[0].UserID != "u-1" || page.Items[0].ID == "" {
		t.Fatalf("unexpected page: %+v", page)
	}

	rec, _ = doRequest(t, e, http.MethodGet, "/api/v1/translations?limit=0", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid limit to fail, got %d", rec.Code)
	}

	rec, _ = doRequest(t, e, http.MethodDelete, "/api/v1/translations", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	_, envelope = doRequest(t, e, http.MethodGet, "/api/v1/translations", "", nil)
	if !strings.Contains(string(envelope.Data), `"total":0`) {
		t.Fatalf("expected empty history, got %s", envelope.Data)
	}
}

func TestLanguagesAndHealth(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{})
	e := server.Handler()

	rec, envelope := doRequest(t, e, http.MethodGet, "/api/v1/languages", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(envelope.Data), `"ar"`) {
		t.Fatalf("unexpected languages response: %d %s", rec.Code, rec.Body.String())
	}

	rec, envelope = doRequest(t, e, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(envelope.Data), `"providers":2`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRouteUsesJSendFail(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, &stubTranslator{}, Options{})
	rec, envelope := doRequest(t, server.Handler(), http.MethodGet, "/api/v1/missing", "", nil)
	if rec.Code != http.StatusNotFound || envelope.Status != "fail" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestEventsStreamRedactsSettings(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, &stubTranslator{}, Options{SSEHeartbeat: time.Hour})
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/api/v1/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := httpServer.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get(echo.HeaderContentType); got != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", got)
	}

	lines := bufio.NewReader(resp.Body)
	if line, err := lines.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("unexpected first line %q: %v", line, err)
	}

	patch, err := settings.ValidatePatch([]byte(`{"microsoft":{"apiKey":"ms-secret-9876"}}`))
	if err != nil {
		t.Fatalf("validate patch: %v", err)
	}
	if _, err := store.Update(context.Background(), patch); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	var eventLine, dataLine string
	for dataLine == "" {
		line, err := lines.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = line
		}
	}
	if eventLine != settings.TopicSettingsChanged.Name() {
		t.Fatalf("unexpected event: %q", eventLine)
	}
	if strings.Contains(dataLine, "ms-secret-9876") || !strings.Contains(dataLine, "****9876") {
		t.Fatalf("expected redacted settings payload, got %s", dataLine)
	}
}
