package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/peterjabraham/debatable-sub001/internal/config"
	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/infra/logging"
	"github.com/peterjabraham/debatable-sub001/internal/usecase"
)

// ---- Fakes ----

type fakeQueue struct {
	submitted []model.JobPayload
	status    *usecase.JobStatusResponse
	statusErr error
	cancelOK  bool
	cancelErr error
}

func (f *fakeQueue) Submit(ctx context.Context, payload model.JobPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, payload)
	return "01JABCDEF000000000000000PQ", nil
}

func (f *fakeQueue) GetStatus(ctx context.Context, jobID string) (*usecase.JobStatusResponse, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeQueue) Cancel(ctx context.Context, jobID string) (bool, error) {
	return f.cancelOK, f.cancelErr
}

func (f *fakeQueue) CleanupTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

var _ usecase.JobQueueUseCase = (*fakeQueue)(nil)

type fakeConvUC struct {
	summary    string
	summaryErr error
	recorded   []usecase.RecordMessageInput
	recordErr  error
	listed     []*model.ConversationContext
}

func (f *fakeConvUC) Initialize(ctx context.Context, conversationID, userID, topic string) (*model.ConversationContext, error) {
	if conversationID == "" {
		conversationID = "01JCONV00000000000000000000"
	}
	return model.NewConversationContext(conversationID, userID, topic), nil
}

func (f *fakeConvUC) RecordMessage(ctx context.Context, in usecase.RecordMessageInput) (*model.ConversationContext, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.recorded = append(f.recorded, in)
	cc := model.NewConversationContext(in.ConversationID, "u1", "t")
	cc.NextSpeaker = "Ada"
	return cc, nil
}

func (f *fakeConvUC) Summarize(ctx context.Context, conversationID string) (string, error) {
	return f.summary, f.summaryErr
}

func (f *fakeConvUC) ListByUser(ctx context.Context, userID string) ([]*model.ConversationContext, error) {
	return f.listed, nil
}

var _ usecase.ConversationUseCase = (*fakeConvUC)(nil)

// ---- Tests ----

func newTestServer(t *testing.T, queue *fakeQueue, conv *fakeConvUC, apiKey string) *httptest.Server {
	t.Helper()
	log := logging.New(config.LogConfig{Level: "error", Format: "console"}, true)
	srv := NewServer(queue, conv, apiKey, log)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestSubmitJob(t *testing.T) {
	queue := &fakeQueue{}
	ts := newTestServer(t, queue, &fakeConvUC{}, "")

	body := `{"type": "select-experts", "payload": {"topic": "AI regulation", "expertType": "domain", "count": 2}}`
	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.JobID == "" {
		t.Fatal("no job id in response")
	}
	if len(queue.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(queue.submitted))
	}
	if _, ok := queue.submitted[0].(model.SelectExpertsPayload); !ok {
		t.Fatalf("wrong payload type %T", queue.submitted[0])
	}
}

func TestSubmitJob_InvalidPayload(t *testing.T) {
	ts := newTestServer(t, &fakeQueue{}, &fakeConvUC{}, "")

	for name, body := range map[string]string{
		"bad json":     `{`,
		"unknown type": `{"type": "mine-bitcoin", "payload": {}}`,
		"fails checks": `{"type": "select-experts", "payload": {"topic": "", "count": 0}}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", strings.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestGetJobStatus(t *testing.T) {
	queue := &fakeQueue{status: &usecase.JobStatusResponse{
		JobID:    "j1",
		Type:     model.JobTypeGenerateSummary,
		Status:   model.JobStatusCompleted,
		Progress: 100,
		Result:   json.RawMessage(`{"summary": "done", "keyPoints": []}`),
	}}
	ts := newTestServer(t, queue, &fakeConvUC{}, "")

	resp, err := http.Get(ts.URL + "/api/v1/jobs/j1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out usecase.JobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != model.JobStatusCompleted || out.Progress != 100 {
		t.Fatalf("unexpected status body: %+v", out)
	}
}

func TestGetJobStatus_NotFound(t *testing.T) {
	queue := &fakeQueue{statusErr: domain.ErrNotFound}
	ts := newTestServer(t, queue, &fakeConvUC{}, "")

	resp, err := http.Get(ts.URL + "/api/v1/jobs/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCancelJob(t *testing.T) {
	queue := &fakeQueue{cancelOK: true}
	ts := newTestServer(t, queue, &fakeConvUC{}, "")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/jobs/j1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Cancelled {
		t.Fatal("expected cancelled=true")
	}
}

func TestAuth_BearerKey(t *testing.T) {
	ts := newTestServer(t, &fakeQueue{status: &usecase.JobStatusResponse{JobID: "j1"}}, &fakeConvUC{}, "secret")

	// No credentials.
	resp, err := http.Get(ts.URL + "/api/v1/jobs/j1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}

	// Wrong key.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/jobs/j1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", resp.StatusCode)
	}

	// Right key.
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/v1/jobs/j1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", resp.StatusCode)
	}

	// Health stays open.
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", resp.StatusCode)
	}
}

func TestCreateConversation(t *testing.T) {
	conv := &fakeConvUC{}
	ts := newTestServer(t, &fakeQueue{}, conv, "")

	resp, err := http.Post(ts.URL+"/api/v1/conversations", "application/json",
		strings.NewReader(`{"userId": "u1", "topic": "climate"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		ConversationID string `json:"conversationId"`
		Topic          string `json:"topic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ConversationID == "" {
		t.Fatal("no conversation id in response")
	}
	if out.Topic != "climate" {
		t.Fatalf("unexpected topic %q", out.Topic)
	}
}

func TestCreateConversation_MissingFields(t *testing.T) {
	ts := newTestServer(t, &fakeQueue{}, &fakeConvUC{}, "")

	resp, err := http.Post(ts.URL+"/api/v1/conversations", "application/json",
		strings.NewReader(`{"userId": "u1"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPostConversationMessage(t *testing.T) {
	conv := &fakeConvUC{}
	ts := newTestServer(t, &fakeQueue{}, conv, "")

	resp, err := http.Post(ts.URL+"/api/v1/conversations/c1/messages", "application/json",
		strings.NewReader(`{"content": "what about sea levels?"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if len(conv.recorded) != 1 {
		t.Fatalf("expected 1 recorded message, got %d", len(conv.recorded))
	}
	in := conv.recorded[0]
	if in.ConversationID != "c1" {
		t.Fatalf("wrong conversation id %q", in.ConversationID)
	}
	if in.SpeakerID != model.UserSpeakerID {
		t.Fatalf("speaker should default to the user, got %q", in.SpeakerID)
	}
	if in.MessageID == "" {
		t.Fatal("no message id generated")
	}

	var out struct {
		NextSpeaker string `json:"nextSpeaker"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.NextSpeaker != "Ada" {
		t.Fatalf("unexpected next speaker %q", out.NextSpeaker)
	}
}

func TestPostConversationMessage_Errors(t *testing.T) {
	conv := &fakeConvUC{recordErr: domain.ErrNotFound}
	ts := newTestServer(t, &fakeQueue{}, conv, "")

	resp, err := http.Post(ts.URL+"/api/v1/conversations/missing/messages", "application/json",
		strings.NewReader(`{"content": "hello"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// Empty content is rejected before the use case runs.
	resp, err = http.Post(ts.URL+"/api/v1/conversations/c1/messages", "application/json",
		strings.NewReader(`{"content": ""}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListConversations(t *testing.T) {
	conv := &fakeConvUC{listed: []*model.ConversationContext{
		model.NewConversationContext("c1", "u1", "a"),
		model.NewConversationContext("c2", "u1", "b"),
	}}
	ts := newTestServer(t, &fakeQueue{}, conv, "")

	resp, err := http.Get(ts.URL + "/api/v1/conversations?userId=u1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Conversations []*model.ConversationContext `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(out.Conversations))
	}

	// The user id is mandatory.
	resp, err = http.Get(ts.URL + "/api/v1/conversations")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConversationSummary(t *testing.T) {
	conv := &fakeConvUC{summary: "Discussion so far on \"x\":\n"}
	ts := newTestServer(t, &fakeQueue{}, conv, "")

	resp, err := http.Get(ts.URL + "/api/v1/conversations/c1/summary")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
