package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var dayRe = regexp.MustCompile(`生成第(\d+)天行程（共`)

// fakeModel 依 prompt 內容回傳固定的 JSON
type fakeModel struct {
	mu       sync.Mutex
	messages [][]llm.Message
	badDays  bool
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Chat(_ context.Context, msgs []llm.Message, _ llm.Options) (string, error) {
	f.mu.Lock()
	f.messages = append(f.messages, msgs)
	f.mu.Unlock()

	last := msgs[len(msgs)-1].Content
	switch {
	case msgs[0].Content == guideSystemPrompt:
		return "推薦你去故宮。", nil
	case strings.Contains(msgs[0].Content, "旅行需求解析器"):
		return `{"destination":"北京","days":2,"budget":1000}`, nil
	case strings.Contains(last, "標題內容"):
		return `{"title":"北京兩日遊"}`, nil
	case f.badDays && (dayRe.MatchString(last) || strings.HasPrefix(last, "❌")):
		return "今天天氣很好。", nil
	case dayRe.MatchString(last):
		day := dayRe.FindStringSubmatch(last)[1]
		return fmt.Sprintf(`{"day":%s,"title":"第%s天","activities":[{"time":"09:00","title":"景點%s","location":"景點%s","cost":100,"category":"sightseeing"}],"estimatedCost":100}`, day, day, day, day), nil
	case strings.Contains(last, "highlights"):
		return `{"highlights":["故宮"],"tips":["早點出門"]}`, nil
	}
	return "", llm.ErrEmptyResponse
}

type failingStore struct{ PlanStore }

func (failingStore) Create(context.Context, *StoredPlan) error { return errors.New("disk full") }

type testEnv struct {
	model  *fakeModel
	store  PlanStore
	router *gin.Engine
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := &fakeModel{}
	store, err := NewMemoryStore("", logger)
	require.NoError(t, err)

	settings := itinerary.DefaultSettings()
	settings.MaxRetries = 1
	settings.RetryDelay = 0
	deps := Deps{
		Generator: itinerary.NewGenerator(model, itinerary.WithSettings(settings), itinerary.WithLogger(logger)),
		LLM:       model,
		Store:     store,
		Logger:    logger,
	}
	for _, m := range mutate {
		m(&deps)
	}
	srv := NewServer(deps, Options{})
	return &testEnv{model: model, store: deps.Store, router: srv.Router()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func beijing() GeneratePlanRequest {
	b := 1000.0
	return GeneratePlanRequest{Input: itinerary.PlanRequest{Destination: "北京", Days: 2, Budget: &b}}
}

// ========== 測試 ==========

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "fake", body["provider"])
	assert.Equal(t, "memory", body["store"])

	w = env.do(t, http.MethodGet, "/api/generate-plan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Version, decode[map[string]any](t, w)["version"])
}

func TestGeneratePlanSavesResult(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/generate-plan", beijing())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[GeneratePlanResponse](t, w)
	require.True(t, resp.Success)
	assert.Empty(t, resp.Warning)
	require.NotNil(t, resp.Plan)
	assert.NotEmpty(t, resp.Plan.ID)
	assert.Equal(t, "北京兩日遊", resp.Plan.Title)
	assert.Len(t, resp.Plan.Itinerary, 2)
	assert.Equal(t, "第2天", resp.Plan.Itinerary[1].Date)

	saved, err := env.store.Get(context.Background(), resp.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Plan.Title, saved.Title)
}

func TestGeneratePlanWithoutSaving(t *testing.T) {
	env := newTestEnv(t)
	req := beijing()
	save := false
	req.Save = &save

	w := env.do(t, http.MethodPost, "/api/generate-plan", req)
	require.Equal(t, http.StatusOK, w.Code)

	plans, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestGeneratePlanSaveFailureIsWarning(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Store = failingStore{d.Store} })
	w := env.do(t, http.MethodPost, "/api/generate-plan", beijing())
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[GeneratePlanResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, saveFailedWarning, resp.Warning)
	require.NotNil(t, resp.Plan)
	assert.Len(t, resp.Plan.Itinerary, 2)
}

func TestGeneratePlanRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]GeneratePlanRequest{
		"no destination": {Input: itinerary.PlanRequest{Days: 2}},
		"no days":        {Input: itinerary.PlanRequest{Destination: "北京"}},
		"half range":     {Input: itinerary.PlanRequest{Destination: "北京", StartDate: "2025-11-01"}},
		"too long":       {Input: itinerary.PlanRequest{Destination: "北京", Days: 99}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/generate-plan", req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, decode[GeneratePlanResponse](t, w).Success)
		})
	}
	assert.Empty(t, env.model.messages)
}

func TestGeneratePlanUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.model.badDays = true

	w := env.do(t, http.MethodPost, "/api/generate-plan", beijing())
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode[GeneratePlanResponse](t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "無效格式")
}

func TestGeneratePlanStream(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/generate-plan", beijing(), "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Equal(t, 4, strings.Count(body, "event:progress"))
	assert.Contains(t, body, "正在生成第 2 天行程...")
	assert.Contains(t, body, "event:plan")
	assert.NotContains(t, body, "event:error")
}

func TestGeneratePlanStreamError(t *testing.T) {
	env := newTestEnv(t)
	env.model.badDays = true

	w := env.do(t, http.MethodPost, "/api/generate-plan", beijing(), "Accept", "text/event-stream")
	body := w.Body.String()
	assert.Contains(t, body, "event:error")
	assert.NotContains(t, body, "event:plan")
}

func TestPlanCRUD(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/plans", map[string]any{
		"title": "台南小旅行", "destination": "台南", "days": 3, "startDate": "2025-12-30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[StoredPlan](t, w)
	require.NotEmpty(t, created.ID)
	require.Len(t, created.Itinerary, 3)
	assert.Equal(t, "2026-01-01", created.Itinerary[2].Date)

	w = env.do(t, http.MethodGet, "/api/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]StoredPlan](t, w), 1)

	// 只改標題，行程保留
	w = env.do(t, http.MethodPut, "/api/plans/"+created.ID, map[string]any{"title": "台南美食之旅"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/plans/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[StoredPlan](t, w)
	assert.Equal(t, "台南美食之旅", got.Title)
	assert.Len(t, got.Itinerary, 3)
	assert.False(t, got.UpdatedAt.Before(created.UpdatedAt))

	w = env.do(t, http.MethodPut, "/api/plans/"+created.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/plans/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w = env.do(t, method, "/api/plans/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	w = env.do(t, http.MethodPut, "/api/plans/"+created.ID, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePlanValidation(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/plans", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/plans", map[string]any{"destination": "x", "days": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlansWithoutStore(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Store = nil })
	w := env.do(t, http.MethodGet, "/api/plans", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodPost, "/api/generate-plan", beijing())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/chat", ChatRequest{
		Message: "北京有什麼好玩的？",
		History: []ChatPart{{Role: "user", Text: "你好"}, {Role: "model", Text: "你好，想去哪裡？"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "推薦你去故宮。", decode[map[string]string](t, w)["reply"])

	require.Len(t, env.model.messages, 1)
	msgs := env.model.messages[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "北京有什麼好玩的？", msgs[3].Content)

	w = env.do(t, http.MethodPost, "/api/chat", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseRequestHandler(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/parse-request", ParseRequestBody{Text: "想去北京玩兩天，預算一千"})
	require.Equal(t, http.StatusOK, w.Code)

	parsed := decode[itinerary.ParsedRequest](t, w)
	assert.Equal(t, "北京", parsed.Destination)
	assert.Equal(t, 2, parsed.Days)
	assert.Equal(t, itinerary.ConfidenceHigh, parsed.Confidence)

	w = env.do(t, http.MethodPost, "/api/parse-request", ParseRequestBody{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitedRoutes(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Limiter = NewLocalLimiter(0.001, 1) })

	w := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 其他路由不受影響
	w = env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := itinerary.NewMetrics(reg)
	env := newTestEnv(t, func(d *Deps) {
		settings := d.Generator.Settings()
		d.Generator = itinerary.NewGenerator(d.LLM, itinerary.WithSettings(settings), itinerary.WithMetrics(metrics))
		d.Gatherer = reg
	})

	w := env.do(t, http.MethodPost, "/api/generate-plan", beijing())
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `travelplanner_generation_units_total{outcome="accepted",unit="day"} 2`)
}

func TestMemoryStorePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := NewMemoryStore(path, logger)
	require.NoError(t, err)
	p := newStoredPlan(itinerary.Plan{Title: "t", Destination: "d", Days: 1, Itinerary: expandDays("", 1)})
	require.NoError(t, s.Create(context.Background(), p))

	reloaded, err := NewMemoryStore(path, logger)
	require.NoError(t, err)
	got, err := reloaded.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "第1天", got.Itinerary[0].Date)
}

func TestMemoryStoreRollsBackWhenSaveFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.Mkdir(dir, 0o755))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s, err := NewMemoryStore(filepath.Join(dir, "plans.json"), logger)
	require.NoError(t, err)
	kept := newStoredPlan(itinerary.Plan{Title: "原本", Destination: "台北", Days: 1, Itinerary: expandDays("", 1)})
	require.NoError(t, s.Create(ctx, kept))

	// 資料夾不見了，之後每次寫檔都會失敗
	require.NoError(t, os.RemoveAll(dir))

	lost := newStoredPlan(itinerary.Plan{Title: "新的", Destination: "高雄", Days: 1, Itinerary: expandDays("", 1)})
	require.Error(t, s.Create(ctx, lost))
	_, err = s.Get(ctx, lost.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)

	title := "改過"
	require.Error(t, s.Update(ctx, kept.ID, PlanPatch{Title: &title}))
	got, err := s.Get(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "原本", got.Title)
	assert.Equal(t, kept.UpdatedAt, got.UpdatedAt)

	require.Error(t, s.Delete(ctx, kept.ID))
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)
}

func TestLocalLimiterIsPerKey(t *testing.T) {
	l := NewLocalLimiter(0.001, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.1.1.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.1.1.1")
	assert.False(t, ok)
	ok, _ = l.Allow(ctx, "2.2.2.2")
	assert.True(t, ok)
}
