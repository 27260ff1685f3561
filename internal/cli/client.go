package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Ответы API. Клиент не импортирует internal/api, поэтому типы свои.

// StepResponse — шаг pipeline из API.
type StepResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Type      string   `json:"type"`
	Phase     string   `json:"phase"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// EdgeResponse — ребро графа из API.
type EdgeResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PipelineResponse — структура pipeline из API.
type PipelineResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []StepResponse `json:"steps"`
	Edges       []EdgeResponse `json:"edges"`
	Order       []string       `json:"order"`
	ActiveRunID string         `json:"active_run_id,omitempty"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID           string `json:"id"`
	Pipeline     string `json:"pipeline"`
	Status       string `json:"status"`
	Phase        string `json:"phase,omitempty"`
	Trigger      string `json:"trigger"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	StepID     string `json:"step_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Output     any    `json:"output,omitempty"`
	Next       string `json:"next,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// TriggerRunResponse — результат ручного запуска из API.
type TriggerRunResponse struct {
	Run   RunResponse    `json:"run"`
	Tasks []TaskResponse `json:"tasks"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	CronExpr  string `json:"cron_expr"`
	Timezone  string `json:"timezone"`
	StartDate string `json:"start_date"`
	Catchup   bool   `json:"catchup"`
	Enabled   bool   `json:"enabled"`
	NextDueAt string `json:"next_due_at,omitempty"`
	LastRunAt string `json:"last_run_at,omitempty"`
	LastRunID string `json:"last_run_id,omitempty"`
}

// ListRunsOpts — фильтр и страница для ListRuns. Нулевые поля не передаются.
type ListRunsOpts struct {
	Status string
	Limit  int
	Offset int
}

func (o ListRunsOpts) query() url.Values {
	q := url.Values{}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// APIError — ответ API со статусом 4xx/5xx.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// envelope — общая обёртка ответов API: data (+total для списков) или error.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DefaultTimeout покрывает синхронный POST /runs, который ждёт все шаги run.
const DefaultTimeout = 5 * time.Minute

// Client — клиент HTTP API scheduler'а.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *Client) GetPipeline() (*PipelineResponse, error) {
	var p PipelineResponse
	return &p, c.call(http.MethodGet, "/api/v1/pipeline", nil, nil, &p)
}

// ListRuns — runs от новых к старым.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	var runs []RunResponse
	return runs, c.call(http.MethodGet, "/api/v1/runs", opts.query(), nil, &runs)
}

// TriggerRun запускает pipeline и ждёт завершения run.
func (c *Client) TriggerRun() (*TriggerRunResponse, error) {
	var resp TriggerRunResponse
	return &resp, c.call(http.MethodPost, "/api/v1/runs", nil, nil, &resp)
}

func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	return &run, c.call(http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil, nil, &run)
}

// ListTasks — tasks run в порядке создания.
func (c *Client) ListTasks(runID string) ([]TaskResponse, error) {
	var tasks []TaskResponse
	return tasks, c.call(http.MethodGet, "/api/v1/runs/"+url.PathEscape(runID)+"/tasks", nil, nil, &tasks)
}

func (c *Client) GetSchedule() (*ScheduleResponse, error) {
	var sched ScheduleResponse
	return &sched, c.call(http.MethodGet, "/api/v1/schedule", nil, nil, &sched)
}

// SetScheduleEnabled включает или выключает запуски по расписанию.
func (c *Client) SetScheduleEnabled(enabled bool) (*ScheduleResponse, error) {
	var sched ScheduleResponse
	body := map[string]bool{"enabled": enabled}
	return &sched, c.call(http.MethodPut, "/api/v1/schedule/enabled", nil, body, &sched)
}

// call выполняет запрос и раскладывает data из ответа в into.
// Ответ с ошибкой превращается в *APIError.
func (c *Client) call(method, path string, query url.Values, body, into any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, target, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if into == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, into)
}
