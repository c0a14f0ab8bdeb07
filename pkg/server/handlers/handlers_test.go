package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/medinsight"
	"github.com/soundprediction/medinsight/pkg/research"
	"github.com/soundprediction/medinsight/pkg/retrieval"
	"github.com/soundprediction/medinsight/pkg/server/dto"
	"github.com/soundprediction/medinsight/pkg/stream"
	"github.com/soundprediction/medinsight/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistant struct {
	mu        sync.Mutex
	upserts   []retrieval.InsightInput
	searches  []medinsight.SearchRequest
	chats     []medinsight.ChatRequest
	research  []research.Request
	summaries []medinsight.SummaryRequest
	matches   []types.Match
	upsertErr error
}

func (f *fakeAssistant) UpsertInsight(_ context.Context, in retrieval.InsightInput) (*types.Insight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, in)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &types.Insight{ID: "insight-1", Text: in.Text, OwnerScope: in.OwnerScope}, nil
}

func (f *fakeAssistant) SearchInsights(_ context.Context, req medinsight.SearchRequest) []types.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, req)
	return f.matches
}

func (f *fakeAssistant) ExpertChat(_ context.Context, req medinsight.ChatRequest, sink stream.Sink) error {
	f.mu.Lock()
	f.chats = append(f.chats, req)
	f.mu.Unlock()

	em := stream.NewEmitter(sink)
	_ = em.Send(stream.Token("Start "))
	_ = em.Send(stream.Token("aspirin."))
	_ = em.Send(stream.Metadata([]string{"Aspirin"}, nil))
	return em.Close()
}

func (f *fakeAssistant) DeepResearch(_ context.Context, req research.Request, sink stream.Sink) error {
	f.mu.Lock()
	f.research = append(f.research, req)
	f.mu.Unlock()

	em := stream.NewEmitter(sink)
	_ = em.Send(stream.Status(research.StatusStarting))
	_ = em.Send(stream.Token("report"))
	return em.Close()
}

func (f *fakeAssistant) SummarizeReport(_ context.Context, req medinsight.SummaryRequest, sink stream.Sink) error {
	f.mu.Lock()
	f.summaries = append(f.summaries, req)
	f.mu.Unlock()

	em := stream.NewEmitter(sink)
	_ = em.Send(stream.Status(medinsight.StatusReadingReport))
	_ = em.Send(stream.Token("## Summary"))
	return em.Close()
}

func (f *fakeAssistant) Close() error { return nil }

func newTestRouter(a medinsight.Assistant) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ih := NewInsightHandler(a, nil)
	sh := NewStreamHandler(a, nil)
	r.POST("/api/v1/expert-check", ih.AddExpertCheck)
	r.GET("/api/v1/expert-check", ih.SearchExpertChecks)
	r.POST("/api/v1/expert-chat", sh.ExpertChat)
	r.POST("/api/v1/deep-research", sh.DeepResearch)
	r.POST("/api/v1/summarize-medical-report", sh.SummarizeReport)
	return r
}

func do(r http.Handler, method, target, body, hospital string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if hospital != "" {
		req = req.WithContext(context.WithValue(req.Context(), types.ContextKeyHospitalID, hospital))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEvents(t *testing.T, body string) []stream.Event {
	t.Helper()
	var events []stream.Event
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev stream.Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev), "line %q", line)
		events = append(events, ev)
	}
	return events
}

func TestAddExpertCheck(t *testing.T) {
	fa := &fakeAssistant{}
	r := newTestRouter(fa)

	body := `{"check_text":"Check ferritin before iron","category":"Hematology","medication":["Iron sucrose"," "],"lab_test":["Ferritin","TSAT"]}`
	w := do(r, http.MethodPost, "/api/v1/expert-check", body, "hosp-a")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.ExpertCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "insight-1", resp.ID)

	require.Len(t, fa.upserts, 1)
	assert.Equal(t, "hosp-a", fa.upserts[0].OwnerScope)
	assert.Equal(t, "Iron sucrose", fa.upserts[0].Medication)
	assert.Equal(t, "Ferritin, TSAT", fa.upserts[0].LabTest)
}

func TestAddExpertCheckBodyScopeWins(t *testing.T) {
	fa := &fakeAssistant{}
	r := newTestRouter(fa)

	w := do(r, http.MethodPost, "/api/v1/expert-check", `{"check_text":"x","hospital_id":"hosp-b"}`, "hosp-a")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fa.upserts, 1)
	assert.Equal(t, "hosp-b", fa.upserts[0].OwnerScope)
}

func TestAddExpertCheckErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		hospital string
		upsert   error
		want     int
		wantCode string
	}{
		{"malformed json", `{"check_text":`, "hosp-a", nil, http.StatusBadRequest, "invalid_request"},
		{"missing text", `{"category":"x"}`, "hosp-a", nil, http.StatusBadRequest, "invalid_request"},
		{"blank text", `{"check_text":"  "}`, "hosp-a", nil, http.StatusBadRequest, "validation_error"},
		{"missing scope", `{"check_text":"x"}`, "", nil, http.StatusBadRequest, "missing_scope"},
		{"store failure", `{"check_text":"x"}`, "hosp-a", errors.New("disk full"), http.StatusInternalServerError, "store_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAssistant{upsertErr: tt.upsert}
			w := do(newTestRouter(fa), http.MethodPost, "/api/v1/expert-check", tt.body, tt.hospital)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestSearchExpertChecks(t *testing.T) {
	fa := &fakeAssistant{matches: []types.Match{{
		ID:          "i1",
		Text:        "Check ferritin",
		OwnerScope:  "hosp-a",
		Medication:  "Iron",
		SourceLabel: types.SourceSameScope,
	}}}
	r := newTestRouter(fa)

	w := do(r, http.MethodGet, "/api/v1/expert-check?query=anemia&category=Hematology&top_k=2", "", "hosp-a")
	require.Equal(t, http.StatusOK, w.Code)

	var results []types.Match
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "i1", results[0].ID)

	require.Len(t, fa.searches, 1)
	assert.Equal(t, medinsight.SearchRequest{Query: "anemia", Scope: "hosp-a", Category: "Hematology", TopK: 2}, fa.searches[0])
}

func TestSearchExpertChecksEmptyResults(t *testing.T) {
	w := do(newTestRouter(&fakeAssistant{}), http.MethodGet, "/api/v1/expert-check?query=anemia", "", "hosp-a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSearchExpertChecksValidation(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		hospital string
	}{
		{"missing query", "/api/v1/expert-check", "hosp-a"},
		{"missing scope", "/api/v1/expert-check?query=x", ""},
		{"bad top_k", "/api/v1/expert-check?query=x&top_k=zero", "hosp-a"},
		{"negative top_k", "/api/v1/expert-check?query=x&top_k=-1", "hosp-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestRouter(&fakeAssistant{}), http.MethodGet, tt.target, "", tt.hospital)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestExpertChatStream(t *testing.T) {
	fa := &fakeAssistant{}
	r := newTestRouter(fa)

	w := do(r, http.MethodPost, "/api/v1/expert-chat", `{"query":"anemia in CKD","category":"Nephrology"}`, "hosp-a")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	events := decodeEvents(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, stream.TypeToken, events[0].Type)
	assert.Equal(t, stream.TypeMetadata, events[2].Type)
	assert.Equal(t, []string{"Aspirin"}, events[2].Medications)
	assert.Equal(t, stream.TypeDone, events[3].Type)

	require.Len(t, fa.chats, 1)
	assert.Equal(t, medinsight.ChatRequest{Query: "anemia in CKD", UserScope: "hosp-a", Category: "Nephrology"}, fa.chats[0])
}

func TestExpertChatExplicitHospitalWithoutUserScope(t *testing.T) {
	fa := &fakeAssistant{}
	w := do(newTestRouter(fa), http.MethodPost, "/api/v1/expert-chat", `{"query":"q","hospital_id":"hosp-b"}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fa.chats, 1)
	assert.Equal(t, "hosp-b", fa.chats[0].HospitalID)
	assert.Empty(t, fa.chats[0].UserScope)
}

func TestExpertChatValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		hospital string
	}{
		{"missing query", `{}`, "hosp-a"},
		{"blank query", `{"query":"   "}`, "hosp-a"},
		{"no scope at all", `{"query":"q"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAssistant{}
			w := do(newTestRouter(fa), http.MethodPost, "/api/v1/expert-chat", tt.body, tt.hospital)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			assert.Empty(t, fa.chats)
		})
	}
}

func TestDeepResearchStream(t *testing.T) {
	fa := &fakeAssistant{}
	body := `{"image_url":"https://x/ct.png","audio_url":"https://x/a.wav","pdf_url":"https://x/r.pdf","vision_prompt":"lungs?"}`
	w := do(newTestRouter(fa), http.MethodPost, "/api/v1/deep-research", body, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	events := decodeEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, stream.TypeStatus, events[0].Type)
	assert.True(t, events[len(events)-1].Terminal())

	require.Len(t, fa.research, 1)
	assert.Equal(t, research.Request{
		ImageRef:    "https://x/ct.png",
		AudioRef:    "https://x/a.wav",
		DocumentRef: "https://x/r.pdf",
		Prompt:      "lungs?",
	}, fa.research[0])
}

func TestDeepResearchMalformed(t *testing.T) {
	w := do(newTestRouter(&fakeAssistant{}), http.MethodPost, "/api/v1/deep-research", `{"image_url":`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestSummarizeReportStream(t *testing.T) {
	fa := &fakeAssistant{}
	body := `{"image_url":"https://x/rash.jpg","use_skin_specialist":true}`
	w := do(newTestRouter(fa), http.MethodPost, "/api/v1/summarize-medical-report", body, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	events := decodeEvents(t, w.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, stream.TypeStatus, events[0].Type)
	assert.Equal(t, stream.Token("## Summary"), events[1])
	assert.Equal(t, stream.TypeDone, events[2].Type)

	require.Len(t, fa.summaries, 1)
	assert.Equal(t, medinsight.SummaryRequest{ImageRef: "https://x/rash.jpg", SkinSpecialist: true}, fa.summaries[0])
}

func TestSummarizeReportValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing image", body: `{}`},
		{name: "blank image", body: `{"image_url":"  "}`},
		{name: "malformed", body: `{"image_url":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAssistant{}
			w := do(newTestRouter(fa), http.MethodPost, "/api/v1/summarize-medical-report", tt.body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			assert.Empty(t, fa.summaries)
		})
	}
}

func TestHandlersWithoutAssistant(t *testing.T) {
	r := newTestRouter(nil)

	w := do(r, http.MethodPost, "/api/v1/expert-check", `{"check_text":"x"}`, "hosp-a")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(r, http.MethodPost, "/api/v1/expert-chat", `{"query":"q"}`, "hosp-a")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(r, http.MethodPost, "/api/v1/deep-research", `{}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(r, http.MethodPost, "/api/v1/summarize-medical-report", `{"image_url":"https://x/a.jpg"}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
