package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.ServerURL = baseURL
	cfg.RequestTimeout = 10
	return NewClient(cfg, NewLogger(io.Discard))
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]Workspace{})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.TokenFunc = func() string { return "tok123" }

	if _, err := c.FetchWorkspaces(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("authorization header: %q", gotAuth)
	}
}

func TestClientOmitsAuthorizationWithoutToken(t *testing.T) {
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		_ = json.NewEncoder(w).Encode([]Workspace{})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.TokenFunc = func() string { return "" }

	if _, err := c.FetchWorkspaces(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hadAuth {
		t.Fatalf("unexpected Authorization header")
	}
}

func TestClientUnauthorizedFiresHookOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	var fired int32
	c.OnUnauthorized = func() { atomic.AddInt32(&fired, 1) }

	_, err := c.FetchWorkspaces(context.Background())
	if err == nil {
		t.Fatalf("expected error on 401")
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("hook fired %d times", fired)
	}
}

func TestClientErrorIncludesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workspace not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.FetchAgents(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "workspace not found") {
		t.Fatalf("error message: %v", err)
	}
}

func TestFetchAgentsSendsWorkspaceQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("workspace_id"); got != "ws1" {
			t.Errorf("workspace_id: %q", got)
		}
		_ = json.NewEncoder(w).Encode([]Agent{{ID: "a1", Name: "One"}})
	}))
	defer server.Close()

	agents, err := newTestClient(server.URL).FetchAgents(context.Background(), "ws1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "a1" {
		t.Fatalf("agents: %v", agents)
	}
}

func TestFetchGroupMessagesUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/group/g1/messages" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("default limit: %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []Message{{Role: "user", Content: "hi"}},
		})
	}))
	defer server.Close()

	msgs, err := newTestClient(server.URL).FetchGroupMessages(context.Background(), "ws1", "g1", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Fatalf("messages: %v", msgs)
	}
}

func TestInvokeSendsChatPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/invoke" {
			t.Errorf("path: %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["agent_id"] != "a1" || body["workspace_id"] != "ws1" || body["message"] != "hi" {
			t.Errorf("payload: %v", body)
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{Response: "hello"})
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Invoke(context.Background(), "ws1", "a1", "hi")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp.Response != "hello" {
		t.Fatalf("response: %q", resp.Response)
	}
}

func TestGeneratePlanDecodesWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/group/plan" {
			t.Errorf("path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"workflow": Workflow{
				PlanName: "plan",
				Steps:    []WorkflowStep{{AgentName: "Coder", Task: "write"}},
			},
			"status": "ok",
		})
	}))
	defer server.Close()

	plan, err := newTestClient(server.URL).GeneratePlan(context.Background(), "ws1", "g1", "do it")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan == nil || plan.PlanName != "plan" || len(plan.Steps) != 1 {
		t.Fatalf("workflow: %+v", plan)
	}
}

func TestStreamGroupChatSetsSSEHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("accept header: %q", got)
		}
		writeSSE(w, "finish", `{"status":"DONE"}`)
	}))
	defer server.Close()

	rc, err := newTestClient(server.URL).StreamGroupChat(context.Background(), "ws1", "g1", "hi")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer rc.Close()

	var names []string
	if err := ReadStream(rc, func(ev StreamEvent) { names = append(names, ev.Name) }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(names) != 1 || names[0] != "finish" {
		t.Fatalf("events: %v", names)
	}
}

func TestUploadFilesMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("path"); got != "docs" {
			t.Errorf("path field: %q", got)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 2 {
			t.Errorf("expected 2 files, got %d", len(files))
		}
	}))
	defer server.Close()

	err := newTestClient(server.URL).UploadFiles(context.Background(), "docs", []FileUpload{
		{Name: "a.txt", Content: []byte("aaa")},
		{Name: "b.txt", Content: []byte("bbb")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func TestTestConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	if !newTestClient(server.URL).TestConnectivity(context.Background()) {
		t.Fatalf("expected reachable")
	}

	server.Close()
	if newTestClient(server.URL).TestConnectivity(context.Background()) {
		t.Fatalf("expected unreachable after close")
	}
}
