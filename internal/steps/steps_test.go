package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// recorded — запрос, полученный тестовым сервером.
type recorded struct {
	Method      string
	ContentType string
	Body        []byte
}

// newServer поднимает сервер, отвечающий фиксированным телом.
func newServer(t *testing.T, status int, body string) (*httptest.Server, *[]recorded) {
	t.Helper()

	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			Method:      r.Method,
			ContentType: r.Header.Get("Content-Type"),
			Body:        data,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

// closedURL возвращает адрес, на котором никто не слушает.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func outputs(t *testing.T, kv map[string]any) *engine.Context {
	t.Helper()
	ctx := engine.NewContext()
	for k, v := range kv {
		require.NoError(t, ctx.Set(k, v))
	}
	return ctx
}

// =============================================================================
// Fetch
// =============================================================================

func TestFetchStep_Success(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"values": [1, 2, 3]}`)

	step := NewFetchStep(FetchConfig{URL: srv.URL, Fault: NoFault{}})
	resp, err := step.Execute(context.Background(), NewRequest("fetch_data", nil))
	require.NoError(t, err)

	assert.Equal(t, domain.FetchSucceeded([]any{json.Number("1"), json.Number("2"), json.Number("3")}), resp.Output)
	assert.Empty(t, resp.Next)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodGet, (*calls)[0].Method)
	assert.Empty(t, (*calls)[0].ContentType)
	assert.Equal(t, "fetch", step.Type())
}

func TestFetchStep_FailureCollapsesToMarker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not json", http.StatusOK, `<html>oops</html>`},
		{"missing values", http.StatusOK, `{"data": [1]}`},
		{"null values", http.StatusOK, `{"values": null}`},
		{"values not array", http.StatusOK, `{"values": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)
			step := NewFetchStep(FetchConfig{URL: srv.URL, Fault: NoFault{}})

			resp, err := step.Execute(context.Background(), NewRequest("fetch_data", nil))
			require.NoError(t, err)
			assert.Equal(t, domain.FetchFailed(), resp.Output)
		})
	}
}

func TestFetchStep_TransportError(t *testing.T) {
	step := NewFetchStep(FetchConfig{URL: closedURL(t), Fault: NoFault{}})

	resp, err := step.Execute(context.Background(), NewRequest("fetch_data", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.FetchFailed(), resp.Output)
}

func TestFetchStep_IgnoresStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `{"values": ["a"]}`)
	step := NewFetchStep(FetchConfig{URL: srv.URL, Fault: NoFault{}})

	resp, err := step.Execute(context.Background(), NewRequest("fetch_data", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.FetchSucceeded([]any{"a"}), resp.Output)
}

func TestFetchStep_EmptyValues(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"values": []}`)
	step := NewFetchStep(FetchConfig{URL: srv.URL, Fault: NoFault{}})

	resp, err := step.Execute(context.Background(), NewRequest("fetch_data", nil))
	require.NoError(t, err)

	result := resp.Output.(domain.FetchResult)
	assert.False(t, result.Failed)
	assert.False(t, result.Truthy())
}

func TestFetchStep_SecondWindowFault(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"values": [7]}`)

	tests := []struct {
		second int
		failed bool
	}{
		{0, true},
		{29, true},
		{30, false},
		{59, false},
	}

	for _, tt := range tests {
		clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, tt.second, 0, time.UTC))
		step := NewFetchStep(FetchConfig{URL: srv.URL, Clock: clock})

		resp, err := step.Execute(context.Background(), NewRequest("fetch_data", nil))
		require.NoError(t, err)

		result := resp.Output.(domain.FetchResult)
		assert.Equal(t, tt.failed, result.Failed, "second=%d", tt.second)
	}

	// Запрос выполняется всегда, даже если результат будет отброшен
	assert.Len(t, *calls, len(tests))
}

// =============================================================================
// Fault
// =============================================================================

func TestParseFault(t *testing.T) {
	f, err := ParseFault("")
	require.NoError(t, err)
	assert.Equal(t, NewSecondWindowFault(), f)

	f, err = ParseFault("second-window")
	require.NoError(t, err)
	assert.Equal(t, SecondWindowFault{Before: 30}, f)

	f, err = ParseFault("NONE")
	require.NoError(t, err)
	assert.Equal(t, NoFault{}, f)

	f, err = ParseFault("probability:0.25")
	require.NoError(t, err)
	assert.IsType(t, &ProbabilityFault{}, f)

	for _, bad := range []string{"probability:2", "probability:x", "chaos"} {
		_, err := ParseFault(bad)
		assert.ErrorIs(t, err, ErrInvalidConfig, bad)
	}
}

func TestProbabilityFault_Bounds(t *testing.T) {
	now := time.Now()
	src := rand.NewPCG(1, 2)

	never := NewProbabilityFault(0, src)
	always := NewProbabilityFault(1, src)
	for range 100 {
		assert.False(t, never.ShouldFail(now))
		assert.True(t, always.ShouldFail(now))
	}
}

func TestFaultFunc(t *testing.T) {
	var got time.Time
	f := FaultFunc(func(now time.Time) bool {
		got = now
		return true
	})

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, f.ShouldFail(at))
	assert.Equal(t, at, got)
}

// =============================================================================
// Branch
// =============================================================================

func newBranch(t *testing.T, policy AggregatePolicy, sources ...string) *BranchStep {
	t.Helper()
	step, err := NewBranchStep(BranchConfig{
		Sources:   sources,
		Policy:    policy,
		OnSuccess: "process",
		OnFailure: "alert",
	})
	require.NoError(t, err)
	return step
}

func TestBranchStep_Decide(t *testing.T) {
	tests := []struct {
		name  string
		value any
		next  string
	}{
		{"values", domain.FetchSucceeded([]any{1.0}), "process"},
		{"failure marker", domain.FetchFailed(), "alert"},
		{"empty values", domain.FetchSucceeded(nil), "alert"},
		{"plain slice", []any{"x"}, "process"},
		{"false", false, "alert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := newBranch(t, "", "fetch")
			req := NewRequest("branch", outputs(t, map[string]any{"fetch": tt.value}))

			resp, err := step.Execute(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.next, resp.Next)
			assert.Equal(t, tt.next, resp.Output)
		})
	}
}

func TestBranchStep_MissingSource(t *testing.T) {
	step := newBranch(t, "", "fetch")

	resp, err := step.Execute(context.Background(), NewRequest("branch", nil))
	require.NoError(t, err)
	assert.Equal(t, "alert", resp.Next)
}

func TestBranchStep_Policies(t *testing.T) {
	out := outputs(t, map[string]any{
		"a": domain.FetchSucceeded([]any{1.0}),
		"b": domain.FetchFailed(),
	})

	resp, err := newBranch(t, AllSucceeded, "a", "b").Execute(context.Background(), NewRequest("branch", out))
	require.NoError(t, err)
	assert.Equal(t, "alert", resp.Next)

	resp, err = newBranch(t, AnySucceeded, "a", "b").Execute(context.Background(), NewRequest("branch", out))
	require.NoError(t, err)
	assert.Equal(t, "process", resp.Next)

	resp, err = newBranch(t, AnySucceeded).Execute(context.Background(), NewRequest("branch", out))
	require.NoError(t, err)
	assert.Equal(t, "alert", resp.Next, "no sources means no data")
}

func TestNewBranchStep_InvalidConfig(t *testing.T) {
	tests := []BranchConfig{
		{OnSuccess: "process"},
		{OnSuccess: "x", OnFailure: "x"},
		{OnSuccess: "process", OnFailure: "alert", Policy: "most"},
	}

	for _, cfg := range tests {
		_, err := NewBranchStep(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}

	step := newBranch(t, "")
	onSuccess, onFailure := step.Successors()
	assert.Equal(t, "process", onSuccess)
	assert.Equal(t, "alert", onFailure)
}

// =============================================================================
// Alert
// =============================================================================

func TestAlertStep_Execute(t *testing.T) {
	var buf bytes.Buffer
	ctx := telemetry.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	resp, err := NewAlertStep("").Execute(ctx, NewRequest("alert", nil))
	require.NoError(t, err)
	assert.Nil(t, resp.Output)

	assert.Contains(t, buf.String(), "Send alert e-mail now!")
	assert.Contains(t, buf.String(), "level=WARN")
}

// =============================================================================
// Inference
// =============================================================================

func TestInferenceStep_Success(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"result": {"score": 0.9}}`)

	step := NewInferenceStep(InferenceConfig{URL: srv.URL, Source: "fetch"})
	req := NewRequest("process", outputs(t, map[string]any{
		"fetch": domain.FetchSucceeded([]any{1.0, 2.0, 3.0}),
	}))

	resp, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": json.Number("0.9")}, resp.Output)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "application/json", call.ContentType)
	// Значения обёрнуты во внешний список
	assert.JSONEq(t, `{"values": [[1, 2, 3]]}`, string(call.Body))
}

func TestInferenceStep_NullResultIsAccepted(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"result": null}`)
	step := NewInferenceStep(InferenceConfig{URL: srv.URL, Source: "fetch"})

	resp, err := step.Execute(context.Background(), NewRequest("process", nil))
	require.NoError(t, err)
	assert.Nil(t, resp.Output)
}

func TestInferenceStep_Errors(t *testing.T) {
	t.Run("missing result", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, `{"output": 1}`)
		step := NewInferenceStep(InferenceConfig{URL: srv.URL, Source: "fetch"})

		_, err := step.Execute(context.Background(), NewRequest("process", nil))
		assert.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("not json", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusBadGateway, `bad gateway`)
		step := NewInferenceStep(InferenceConfig{URL: srv.URL, Source: "fetch"})

		_, err := step.Execute(context.Background(), NewRequest("process", nil))
		assert.ErrorIs(t, err, ErrDecodeResponse)
	})

	t.Run("transport", func(t *testing.T) {
		step := NewInferenceStep(InferenceConfig{URL: closedURL(t), Source: "fetch"})

		_, err := step.Execute(context.Background(), NewRequest("process", nil))
		assert.ErrorIs(t, err, ErrHTTPRequest)
	})

	t.Run("cancelled", func(t *testing.T) {
		srv, _ := newServer(t, http.StatusOK, `{"result": 1}`)
		step := NewInferenceStep(InferenceConfig{URL: srv.URL, Source: "fetch"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := step.Execute(ctx, NewRequest("process", nil))
		assert.ErrorIs(t, err, ErrStepCancelled)
	})
}

// =============================================================================
// Forward
// =============================================================================

func TestForwardStep_Success(t *testing.T) {
	srv, calls := newServer(t, http.StatusInternalServerError, `not even json`)

	step := NewForwardStep(ForwardConfig{URL: srv.URL, Source: "process"})
	req := NewRequest("forward", outputs(t, map[string]any{"process": "ok"}))

	resp, err := step.Execute(context.Background(), req)
	require.NoError(t, err, "response must be ignored")
	assert.Nil(t, resp.Output)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodPost, (*calls)[0].Method)
	assert.JSONEq(t, `{"result": "ok"}`, string((*calls)[0].Body))
}

func TestForwardStep_TransportError(t *testing.T) {
	step := NewForwardStep(ForwardConfig{URL: closedURL(t), Source: "process"})

	_, err := step.Execute(context.Background(), NewRequest("forward", nil))
	assert.ErrorIs(t, err, ErrHTTPRequest)
}

// =============================================================================
// Client
// =============================================================================

func TestClientResponse_DecodeJSON(t *testing.T) {
	resp := &ClientResponse{Body: []byte(`{"a": 1}`)}

	var v map[string]int
	require.NoError(t, resp.DecodeJSON(&v))
	assert.Equal(t, 1, v["a"])

	resp.Body = []byte(`{`)
	assert.ErrorIs(t, resp.DecodeJSON(&v), ErrDecodeResponse)
}

func TestClientResponse_DecodeJSON_Numbers(t *testing.T) {
	resp := &ClientResponse{Body: []byte(`{"big": 9007199254740993, "frac": 0.1}`)}

	var v map[string]any
	require.NoError(t, resp.DecodeJSON(&v))
	assert.Equal(t, json.Number("9007199254740993"), v["big"])
	assert.Equal(t, json.Number("0.1"), v["frac"])

	resp.Body = []byte(`{"a": 1} {"b": 2}`)
	assert.ErrorIs(t, resp.DecodeJSON(&v), ErrDecodeResponse)
}

func TestInferenceStep_PreservesLargeNumbers(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"result": 12345678901234567891}`)

	step := NewInferenceStep(InferenceConfig{URL: srv.URL, Source: "fetch"})
	req := NewRequest("process", outputs(t, map[string]any{
		"fetch": domain.FetchSucceeded([]any{json.Number("9007199254740993"), json.Number("0.1")}),
	}))

	resp, err := step.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567891"), resp.Output)
	assert.Equal(t, `{"values":[[9007199254740993,0.1]]}`, string((*calls)[0].Body))
}

func TestHTTPClient_RawBody(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{}`)

	_, err := NewHTTPClient(0).Do(context.Background(), http.MethodPost, srv.URL, json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string((*calls)[0].Body))
}

// =============================================================================
// Registry
// =============================================================================

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())

	r.Register("notify", NewAlertStep(""))
	r.Register("fetch", NewFetchStep(FetchConfig{URL: "http://localhost"}))

	assert.True(t, r.Has("notify"))
	assert.Equal(t, []string{"fetch", "notify"}, r.IDs())

	step, err := r.Get("notify")
	require.NoError(t, err)
	assert.Equal(t, engine.StepTypeAlert, step.Type())

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrStepNotFound)

	r.Unregister("notify")
	assert.False(t, r.Has("notify"))
	assert.Equal(t, 1, r.Count())
}
