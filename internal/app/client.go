package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the AgentOS API server. Every request carries a bearer
// token when TokenFunc yields one; a 401 response fires OnUnauthorized once
// and is never retried.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *Logger

	TokenFunc      func() string
	OnUnauthorized func()
}

func NewClient(cfg Config, logger *Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.ServerURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	SystemPrompt string   `json:"system_prompt"`
	Workspace    string   `json:"workspace"`
	ProviderID   string   `json:"provider_id,omitempty"`
	ModelName    string   `json:"model_name,omitempty"`
	PersonaMode  string   `json:"persona_mode,omitempty"` // normal|efficient|concise
	Tools        []string `json:"tools,omitempty"`
	Skills       []string `json:"skills,omitempty"`
}

type Group struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Members          []string `json:"members"`
	SupervisorID     string   `json:"supervisor_id"`
	SupervisorPrompt string   `json:"supervisor_prompt,omitempty"`
}

type ChatResponse struct {
	Response string    `json:"response"`
	Messages []Message `json:"messages,omitempty"`
	Status   string    `json:"status,omitempty"` // CONTINUE|FINISH for multi-turn orchestration
}

type LLMProvider struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	Models    []string `json:"models"`
	BaseURL   string   `json:"base_url,omitempty"`
	APIKeyEnv string   `json:"api_key_env"`
	IsBuiltin bool     `json:"is_builtin,omitempty"`
}

type OutputMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	IsBuiltin   bool   `json:"is_builtin"`
}

type FileNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	IsDir    bool       `json:"is_dir"`
	Locked   bool       `json:"locked"`
	Children []FileNode `json:"children"`
}

type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stream issues a POST and hands the raw body back for SSE consumption. The
// caller owns closing it.
func (c *Client) stream(ctx context.Context, path string, in interface{}) (io.ReadCloser, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if err := c.checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if c.TokenFunc != nil {
		if token := c.TokenFunc(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		if c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return fmt.Errorf("api error: status 401")
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api error: status %d, response: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// --- Workspaces ---

func (c *Client) FetchWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	err := c.doJSON(ctx, http.MethodGet, "/workspaces", nil, nil, &out)
	return out, err
}

func (c *Client) CreateWorkspace(ctx context.Context, name string) (string, error) {
	var out struct {
		Status      string `json:"status"`
		WorkspaceID string `json:"workspace_id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/workspace/create", nil, map[string]string{"name": name}, &out)
	return out.WorkspaceID, err
}

func (c *Client) RenameWorkspace(ctx context.Context, workspaceID, newName string) error {
	return c.doJSON(ctx, http.MethodPost, "/workspace/rename", nil, map[string]string{
		"workspace_id": workspaceID,
		"new_name":     newName,
	}, nil)
}

func (c *Client) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/workspace/delete/"+workspaceID, nil, nil, nil)
}

// --- Agents ---

func (c *Client) FetchAgents(ctx context.Context, workspaceID string) ([]Agent, error) {
	q := url.Values{"workspace_id": {workspaceID}}
	var out []Agent
	err := c.doJSON(ctx, http.MethodGet, "/agents", q, nil, &out)
	return out, err
}

func (c *Client) CreateAgent(ctx context.Context, workspaceID, name, systemPrompt, providerID, modelName string) (string, error) {
	var out struct {
		Status  string `json:"status"`
		AgentID string `json:"agent_id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/agent/create", nil, map[string]string{
		"workspace_id":  workspaceID,
		"name":          name,
		"system_prompt": systemPrompt,
		"provider_id":   providerID,
		"model_name":    modelName,
	}, &out)
	return out.AgentID, err
}

func (c *Client) UpdateAgent(ctx context.Context, workspaceID, agentID string, updates map[string]interface{}) error {
	body := map[string]interface{}{
		"workspace_id": workspaceID,
		"agent_id":     agentID,
	}
	for k, v := range updates {
		body[k] = v
	}
	return c.doJSON(ctx, http.MethodPost, "/agent/update", nil, body, nil)
}

func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/agent/delete/"+agentID, nil, nil, nil)
}

// --- Chat ---

// Invoke runs a single-agent turn against /chat/invoke and waits for the
// complete JSON reply.
func (c *Client) Invoke(ctx context.Context, workspaceID, agentID, message string) (ChatResponse, error) {
	var out ChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/chat/invoke", nil, map[string]string{
		"message":      message,
		"agent_id":     agentID,
		"workspace_id": workspaceID,
	}, &out)
	return out, err
}

// --- Groups ---

func (c *Client) FetchGroups(ctx context.Context, workspaceID string) ([]Group, error) {
	q := url.Values{"workspace_id": {workspaceID}}
	var out []Group
	err := c.doJSON(ctx, http.MethodGet, "/group/list", q, nil, &out)
	return out, err
}

func (c *Client) CreateGroup(ctx context.Context, workspaceID, name string, memberIDs []string, supervisorID string) (Group, error) {
	var out Group
	err := c.doJSON(ctx, http.MethodPost, "/group/create", nil, map[string]interface{}{
		"workspace_id":     workspaceID,
		"name":             name,
		"member_agent_ids": memberIDs,
		"supervisor_id":    supervisorID,
	}, &out)
	return out, err
}

func (c *Client) UpdateGroup(ctx context.Context, workspaceID, groupID string, updates map[string]interface{}) error {
	body := map[string]interface{}{
		"workspace_id": workspaceID,
		"group_id":     groupID,
	}
	for k, v := range updates {
		body[k] = v
	}
	return c.doJSON(ctx, http.MethodPost, "/group/update", nil, body, nil)
}

func (c *Client) DeleteGroup(ctx context.Context, workspaceID, groupID string) error {
	q := url.Values{"workspace_id": {workspaceID}}
	return c.doJSON(ctx, http.MethodDelete, "/group/delete/"+groupID, q, nil, nil)
}

func (c *Client) FetchGroupMessages(ctx context.Context, workspaceID, groupID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{
		"workspace_id": {workspaceID},
		"limit":        {strconv.Itoa(limit)},
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/group/"+groupID+"/messages", q, nil, &out)
	return out.Messages, err
}

// ClearGroupMessages wipes the server-side group transcript. Group history is
// server-authoritative, so local clearing alone is insufficient.
func (c *Client) ClearGroupMessages(ctx context.Context, workspaceID, groupID string) error {
	q := url.Values{"workspace_id": {workspaceID}}
	return c.doJSON(ctx, http.MethodPost, "/group/"+groupID+"/clear", q, nil, nil)
}

func (c *Client) SendGroupMessage(ctx context.Context, workspaceID, groupID, message string) (ChatResponse, error) {
	var out ChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/group/chat", nil, map[string]interface{}{
		"workspace_id": workspaceID,
		"group_id":     groupID,
		"message":      message,
	}, &out)
	return out, err
}

// StreamGroupChat opens the SSE channel for one legacy-mode orchestration
// step.
func (c *Client) StreamGroupChat(ctx context.Context, workspaceID, groupID, message string) (io.ReadCloser, error) {
	return c.stream(ctx, "/group/chat/stream", map[string]interface{}{
		"workspace_id": workspaceID,
		"group_id":     groupID,
		"message":      message,
		"history":      []Message{},
	})
}

func (c *Client) GeneratePlan(ctx context.Context, workspaceID, groupID, userRequest string) (*Workflow, error) {
	var out struct {
		Workflow *Workflow `json:"workflow"`
		Status   string    `json:"status"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/group/plan", nil, map[string]string{
		"workspace_id": workspaceID,
		"group_id":     groupID,
		"user_request": userRequest,
	}, &out)
	return out.Workflow, err
}

// StreamWorkflowExecution opens the streamed /group/execute channel for an
// approved plan.
func (c *Client) StreamWorkflowExecution(ctx context.Context, workspaceID, groupID string, workflow *Workflow, history []Message) (io.ReadCloser, error) {
	return c.stream(ctx, "/group/execute", map[string]interface{}{
		"workspace_id": workspaceID,
		"group_id":     groupID,
		"workflow":     workflow,
		"history":      history,
	})
}

// --- Settings / catalog ---

func (c *Client) FetchProviders(ctx context.Context) ([]LLMProvider, error) {
	var out []LLMProvider
	err := c.doJSON(ctx, http.MethodGet, "/settings/providers", nil, nil, &out)
	return out, err
}

func (c *Client) SaveProvider(ctx context.Context, provider LLMProvider) error {
	return c.doJSON(ctx, http.MethodPost, "/settings/provider", nil, provider, nil)
}

func (c *Client) DeleteProvider(ctx context.Context, providerID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/settings/provider/"+providerID, nil, nil, nil)
}

func (c *Client) FetchSkills(ctx context.Context) ([]string, error) {
	var out []string
	err := c.doJSON(ctx, http.MethodGet, "/skills", nil, nil, &out)
	return out, err
}

func (c *Client) FetchTools(ctx context.Context) ([]string, error) {
	var out []string
	err := c.doJSON(ctx, http.MethodGet, "/tools", nil, nil, &out)
	return out, err
}

// --- Output modes ---

func (c *Client) FetchOutputModes(ctx context.Context) ([]OutputMode, error) {
	var out []OutputMode
	err := c.doJSON(ctx, http.MethodGet, "/output-modes", nil, nil, &out)
	return out, err
}

func (c *Client) CreateOutputMode(ctx context.Context, name, description, prompt string) (OutputMode, error) {
	var out OutputMode
	err := c.doJSON(ctx, http.MethodPost, "/output-modes", nil, map[string]string{
		"name":        name,
		"description": description,
		"prompt":      prompt,
	}, &out)
	return out, err
}

func (c *Client) UpdateOutputMode(ctx context.Context, id string, updates map[string]interface{}) (OutputMode, error) {
	var out OutputMode
	err := c.doJSON(ctx, http.MethodPut, "/output-modes/"+id, nil, updates, &out)
	return out, err
}

func (c *Client) DeleteOutputMode(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/output-modes/"+id, nil, nil, nil)
}

// --- Files ---

func (c *Client) FetchFileTree(ctx context.Context, workspaceID, agentID, rootType string) ([]FileNode, error) {
	if rootType == "" {
		rootType = "shared"
	}
	q := url.Values{
		"workspace_id": {workspaceID},
		"root_type":    {rootType},
	}
	if agentID != "" {
		q.Set("agent_id", agentID)
	}
	var out []FileNode
	err := c.doJSON(ctx, http.MethodGet, "/files/tree", q, nil, &out)
	return out, err
}

func (c *Client) SetFileLock(ctx context.Context, path string, locked bool) error {
	return c.doJSON(ctx, http.MethodPost, "/files/lock", nil, map[string]interface{}{
		"path":   path,
		"locked": locked,
	}, nil)
}

func (c *Client) CreateDirectory(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodPost, "/files/mkdir", nil, map[string]string{"path": path}, nil)
}

func (c *Client) RenameFileItem(ctx context.Context, oldPath, newPath string) error {
	return c.doJSON(ctx, http.MethodPost, "/files/rename", nil, map[string]string{
		"old_path": oldPath,
		"new_path": newPath,
	}, nil)
}

func (c *Client) DeleteFileItem(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, "/files/delete", nil, map[string]string{"path": path}, nil)
}

// FileUpload is one file for a multipart upload.
type FileUpload struct {
	Name    string
	Content []byte
}

func (c *Client) UploadFiles(ctx context.Context, path string, files []FileUpload) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("path", path); err != nil {
		return err
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Content); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/files/upload", nil, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

// --- Auth ---

func (c *Client) Register(ctx context.Context, username, phone, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/register", nil, map[string]string{
		"username": username,
		"phone":    phone,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, phone, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", nil, map[string]string{
		"phone":    phone,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (AuthUser, error) {
	var out AuthUser
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out, err
}

// --- Util ---

func (c *Client) Summarize(ctx context.Context, fragments []string, workspaceID, groupID, agentID, instruction string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/util/summarize", nil, map[string]interface{}{
		"fragments":        fragments,
		"workspace_id":     workspaceID,
		"group_id":         groupID,
		"agent_id":         agentID,
		"user_instruction": instruction,
	}, &out)
	return out.Summary, err
}

// TestConnectivity probes /util/test; any failure reads as unreachable.
func (c *Client) TestConnectivity(ctx context.Context) bool {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/util/test", nil, nil, &out); err != nil {
		return false
	}
	return out.Status == "ok"
}
