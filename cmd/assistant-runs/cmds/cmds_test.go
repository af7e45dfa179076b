package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runJSON = `{"id":"run_1","object":"thread.run","created_at":1699073476,"thread_id":"t1","assistant_id":"asst_1","status":"queued","model":"gpt-4"}`

// setupAPI points the client settings at a test server.
func setupAPI(t *testing.T, handler http.Handler) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(settings.APIKeyKey, "test-key")
	viper.Set(settings.BaseURLKey, server.URL)
	viper.Set(settings.AllowHTTPKey, true)
	viper.Set(settings.AllowLocalNetworksKey, true)
}

func newTestClient(t *testing.T) *api.Client {
	client, err := NewClient()
	require.NoError(t, err)
	return client
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *recorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{
		Method: req.Method,
		Path:   req.URL.EscapedPath(),
		Query:  req.URL.RawQuery,
		Body:   body,
	})
}

func (r *recorder) Requests() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest{}, r.requests...)
}

type rowCollector struct {
	rows []types.Row
}

func (c *rowCollector) AddRow(_ context.Context, row types.Row) error {
	c.rows = append(c.rows, row)
	return nil
}

func cell(t *testing.T, row types.Row, key string) interface{} {
	v, ok := row.Get(key)
	require.True(t, ok, "missing column %s", key)
	return v
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseOutputsFor(t *testing.T) {
	outputs, err := parseOutputsFor([]string{"call_1=sunny", "call_2=a=b", "call_3="})
	require.NoError(t, err)
	require.Len(t, outputs, 3)
	assert.Equal(t, "call_1", outputs[0].ToolCallID)
	assert.Equal(t, "sunny", outputs[0].Output)
	assert.Equal(t, "a=b", outputs[1].Output)
	assert.Equal(t, "", outputs[2].Output)

	_, err = parseOutputsFor([]string{"no-separator"})
	assert.Error(t, err)

	_, err = parseOutputsFor([]string{"=value"})
	assert.Error(t, err)

	_, err = parseOutputsFor([]string{"call_1=a", "call_1=b"})
	assert.Error(t, err)
}

func TestFilterSteps(t *testing.T) {
	steps := []api.RunStepResponse{{ID: "step_abc"}, {ID: "step_abd"}, {ID: "other"}}

	filtered, err := filterSteps(steps, "step_ab*")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "step_abd", filtered[1].ID)

	filtered, err = filterSteps(steps, "")
	require.NoError(t, err)
	assert.Len(t, filtered, 3)

	filtered, err = filterSteps(steps, "nothing*")
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := NewClient()
	assert.True(t, errors.Is(err, settings.ErrMissingAPIKey))
}

func TestNewClientLoadsSettingsFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set(ClientSettingsKey, writeFile(t, "client.yaml", "api_key: from-file\ndefault_model: gpt-4\n"))

	client, err := NewClient()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", client.DefaultModelID())

	viper.Set(settings.DefaultModelKey, "gpt-3.5-turbo")
	client, err = NewClient()
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", client.DefaultModelID())
}

func TestCreateRunFromFile(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(runJSON))
	}))

	run, err := createRun(context.Background(), newTestClient(t), &CreateRunSettings{
		ThreadID: "t1",
		File:     writeFile(t, "run.yaml", "assistant_id: asst_1\nmodel: gpt-4\n"),
		Model:    "gpt-4-turbo",
	})
	require.NoError(t, err)
	assert.Equal(t, "run_1", run.ID)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v1/threads/t1/runs", reqs[0].Path)

	var sent api.RunCreateRequest
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "asst_1", sent.AssistantID)
	assert.Equal(t, "gpt-4-turbo", sent.Model)
}

func TestCreateRunAssistantIDFlagCompletesFile(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(runJSON))
	}))

	_, err := createRun(context.Background(), newTestClient(t), &CreateRunSettings{
		ThreadID:    "t1",
		File:        writeFile(t, "req.yaml", "instructions: be brief\n"),
		AssistantID: "asst_1",
	})
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)

	var sent api.RunCreateRequest
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "asst_1", sent.AssistantID)
	require.NotNil(t, sent.Instructions)
	assert.Equal(t, "be brief", *sent.Instructions)
}

func TestCreateRunAssistantIDFlagOverridesFile(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(runJSON))
	}))

	_, err := createRun(context.Background(), newTestClient(t), &CreateRunSettings{
		ThreadID:    "t1",
		File:        writeFile(t, "req.yaml", "assistant_id: asst_file\n"),
		AssistantID: "asst_flag",
	})
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)
	var sent api.RunCreateRequest
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "asst_flag", sent.AssistantID)
}

func TestCreateRunRejectsInvalidFile(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
	}))

	_, err := createRun(context.Background(), newTestClient(t), &CreateRunSettings{
		ThreadID: "t1",
		File:     writeFile(t, "run.yaml", "model: gpt-4\n"),
	})
	require.Error(t, err)

	_, err = createRun(context.Background(), newTestClient(t), &CreateRunSettings{ThreadID: "t1"})
	require.Error(t, err)

	assert.Empty(t, rec.Requests())
}

func TestSubmitToolOutputsFromFlags(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(runJSON))
	}))

	_, err := submitToolOutputs(context.Background(), NewClient, &SubmitToolOutputsSettings{
		ThreadID:  "t1",
		RunID:     "run_1",
		OutputFor: []string{"call_1=sunny", "call_2=rainy"},
	})
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v1/threads/t1/runs/run_1/submit_tool_outputs", reqs[0].Path)

	var sent api.SubmitToolOutputsRequest
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	require.Len(t, sent.ToolOutputs, 2)
	assert.Equal(t, "call_2", sent.ToolOutputs[1].ToolCallID)
	assert.Equal(t, "rainy", sent.ToolOutputs[1].Output)
}

func TestSubmitToolOutputsFromStdin(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(runJSON))
	}))

	oldStdin := stdin
	t.Cleanup(func() { stdin = oldStdin })
	stdin = strings.NewReader("tool_outputs:\n  - tool_call_id: call_1\n    output: \"42\"\n")

	_, err := submitToolOutputs(context.Background(), NewClient, &SubmitToolOutputsSettings{
		ThreadID: "t1",
		RunID:    "run_1",
		File:     "-",
	})
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"tool_outputs":[{"tool_call_id":"call_1","output":"42"}]}`, string(reqs[0].Body))
}

func TestSubmitToolOutputsRejectsNonStringOutput(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
	}))

	_, err := submitToolOutputs(context.Background(), NewClient, &SubmitToolOutputsSettings{
		ThreadID: "t1",
		RunID:    "run_1",
		File:     writeFile(t, "outputs.yaml", "tool_outputs:\n  - tool_call_id: call_1\n    output: 1\n"),
	})
	require.Error(t, err)
	assert.Empty(t, rec.Requests())
}

func TestSubmitToolOutputsRequiresOneSource(t *testing.T) {
	newClient := func() (*api.Client, error) {
		t.Fatal("client built before the sources were checked")
		return nil, nil
	}

	_, err := submitToolOutputs(context.Background(), newClient, &SubmitToolOutputsSettings{
		ThreadID: "t1",
		RunID:    "run_1",
	})
	require.Error(t, err)

	_, err = submitToolOutputs(context.Background(), newClient, &SubmitToolOutputsSettings{
		ThreadID:    "t1",
		RunID:       "run_1",
		OutputFor:   []string{"call_1=sunny"},
		Interactive: true,
	})
	require.Error(t, err)
}

func stepsMux(rec *recorder, list http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/threads/t1/runs/r1/steps", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		list(w, r)
	})
	mux.HandleFunc("/v1/threads/t1/runs/r1/steps/", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		id := strings.TrimPrefix(r.URL.Path, "/v1/threads/t1/runs/r1/steps/")
		_, _ = w.Write([]byte(`{"id":"` + id + `","object":"thread.run.step","run_id":"r1","type":"message_creation","status":"completed","step_details":{"type":"message_creation","message_creation":{"message_id":"msg_` + id + `"}}}`))
	})
	return mux
}

func TestGetStepsAll(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, stepsMux(rec, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"step_1"}],"first_id":"step_1","last_id":"step_1","has_more":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"step_2"}],"first_id":"step_2","last_id":"step_2","has_more":false}`))
	}))

	steps, err := getSteps(context.Background(), newTestClient(t), &GetStepsSettings{
		ThreadID:    "t1",
		RunID:       "r1",
		All:         true,
		Concurrency: 4,
	})
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "step_1", steps[0].ID)
	assert.Equal(t, "step_2", steps[1].ID)
	require.NotNil(t, steps[1].StepDetails.MessageCreation)
	assert.Equal(t, "msg_step_2", steps[1].StepDetails.MessageCreation.MessageID)

	reqs := rec.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, "order=asc", reqs[0].Query)
	assert.Equal(t, "after=step_1&order=asc", reqs[1].Query)
}

func TestListAllStepIDsStopsWhenCursorDoesNotAdvance(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, stepsMux(rec, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"step_1"}],"first_id":"step_1","last_id":"step_1","has_more":true}`))
	}))

	ids, err := listAllStepIDs(context.Background(), newTestClient(t), "t1", "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"step_1"}, ids)

	reqs := rec.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "after=step_1&order=asc", reqs[1].Query)
}

func TestGetStepsRequiresIDsOrAll(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
	}))
	client := newTestClient(t)

	_, err := getSteps(context.Background(), client, &GetStepsSettings{ThreadID: "t1", RunID: "r1"})
	require.Error(t, err)

	_, err = getSteps(context.Background(), client, &GetStepsSettings{
		ThreadID: "t1",
		RunID:    "r1",
		StepIDs:  []string{"step_1"},
		All:      true,
	})
	require.Error(t, err)

	assert.Empty(t, rec.Requests())
}

func TestListStepsFiltersAndPaginates(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"step_a1"},{"id":"step_b1"}],"first_id":"step_a1","last_id":"step_b1","has_more":false}`))
	}))

	steps, err := listSteps(context.Background(), newTestClient(t), &ListStepsSettings{
		ThreadID: "t1",
		RunID:    "r1",
		IDGlob:   "step_a*",
		Limit:    2,
		Order:    "desc",
	})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "step_a1", steps[0].ID)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "limit=2&order=desc", reqs[0].Query)
}

func TestAddRunRow(t *testing.T) {
	startedAt := int64(1699073480)
	run := &api.RunResponse{
		ID:          "run_1",
		ThreadID:    "t1",
		AssistantID: "asst_1",
		Status:      openai.RunStatusRequiresAction,
		CreatedAt:   1699073476,
		StartedAt:   &startedAt,
		RequiredAction: &api.RequiredAction{
			Type: api.RequiredActionTypeSubmitToolOutputs,
			SubmitToolOutputs: &api.SubmitToolOutputs{
				ToolCalls: []openai.ToolCall{{ID: "call_1"}, {ID: "call_2"}},
			},
		},
		Usage: &openai.Usage{TotalTokens: 7},
	}

	gp := &rowCollector{}
	require.NoError(t, addRunRow(context.Background(), gp, run))
	require.Len(t, gp.rows, 1)

	row := gp.rows[0]
	assert.Equal(t, "run_1", cell(t, row, "id"))
	assert.Equal(t, "requires_action", cell(t, row, "status"))
	assert.Equal(t, startedAt, cell(t, row, "started_at"))
	assert.Nil(t, cell(t, row, "completed_at"))
	assert.Equal(t, "call_1,call_2", cell(t, row, "pending_tool_calls"))
	assert.Nil(t, cell(t, row, "last_error"))
	assert.Equal(t, 7, cell(t, row, "total_tokens"))
}

func TestAddStepRows(t *testing.T) {
	completedAt := int64(1699063299)
	steps := []api.RunStepResponse{
		{
			ID:          "step_1",
			RunID:       "r1",
			Type:        api.RunStepTypeMessageCreation,
			Status:      api.RunStepStatusCompleted,
			CreatedAt:   1699063291,
			CompletedAt: &completedAt,
			StepDetails: api.StepDetails{
				Type:            api.RunStepTypeMessageCreation,
				MessageCreation: &api.MessageCreation{MessageID: "msg_1"},
			},
		},
		{
			ID:     "step_2",
			RunID:  "r1",
			Type:   api.RunStepTypeToolCalls,
			Status: api.RunStepStatusInProgress,
			StepDetails: api.StepDetails{
				Type:      api.RunStepTypeToolCalls,
				ToolCalls: []api.StepToolCall{{ID: "call_1"}, {ID: "call_r"}},
			},
		},
	}

	gp := &rowCollector{}
	require.NoError(t, addStepRows(context.Background(), gp, steps))
	require.Len(t, gp.rows, 2)

	assert.Equal(t, "step_1", cell(t, gp.rows[0], "id"))
	assert.Equal(t, "message_creation", cell(t, gp.rows[0], "type"))
	assert.Equal(t, "completed", cell(t, gp.rows[0], "status"))
	assert.Equal(t, int64(1699063291), cell(t, gp.rows[0], "created_at"))
	assert.Equal(t, completedAt, cell(t, gp.rows[0], "completed_at"))
	assert.Equal(t, "msg_1", cell(t, gp.rows[0], "message_id"))

	assert.Equal(t, "step_2", cell(t, gp.rows[1], "id"))
	assert.Nil(t, cell(t, gp.rows[1], "completed_at"))
	assert.Equal(t, "call_1,call_r", cell(t, gp.rows[1], "tool_calls"))
}

func TestCreateAnswerFromFlags(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte(`{"object":"answer","answers":["Paris"],"completion":"cmpl_1","model":"curie","search_model":"ada","selected_documents":[{"document":0,"text":"Paris is in France"}]}`))
	}))

	answer, err := createAnswer(context.Background(), newTestClient(t), &CreateAnswerSettings{
		Question:  "where is Paris?",
		Documents: []string{"Paris is in France"},
		Model:     "curie",
	})
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 1)
	var sent api.CreateAnswerRequest
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "where is Paris?", sent.Question)
	assert.Equal(t, []string{"Paris is in France"}, sent.Documents)
	assert.Equal(t, "curie", sent.Model)

	gp := &rowCollector{}
	require.NoError(t, addAnswerRows(context.Background(), gp, answer))
	require.Len(t, gp.rows, 1)
	assert.Equal(t, "Paris", cell(t, gp.rows[0], "answer"))
	assert.Equal(t, "ada", cell(t, gp.rows[0], "search_model"))
}

func TestRunsCommandTree(t *testing.T) {
	runsCmd := NewRunsCommand()

	for _, name := range []string{"create", "get", "cancel", "submit-tool-outputs"} {
		sub, _, err := runsCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
		assert.NotNil(t, sub.Flags().Lookup("output"), "%s has no structured output flag", name)
	}

	stepsCmd := NewStepsCommand()
	sub, _, err := stepsCmd.Find([]string{"list"})
	require.NoError(t, err)
	assert.NotNil(t, sub.Flags().Lookup("id"))
	assert.NotNil(t, sub.Flags().Lookup("output"))
}

func TestRunsShowPrintsMarkdown(t *testing.T) {
	setupAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(runJSON))
	}))

	out, err := execute(t, NewRunsCommand(), "show", "t1", "run_1")
	require.NoError(t, err)
	assert.Contains(t, out, "# Run run_1")
	assert.Contains(t, out, "asst_1")
}

func TestStepsShowPrintsEveryStep(t *testing.T) {
	rec := &recorder{}
	setupAPI(t, stepsMux(rec, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"step_1"},{"id":"step_2"}],"first_id":"step_1","last_id":"step_2","has_more":false}`))
	}))

	out, err := execute(t, NewStepsCommand(), "show", "t1", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, "## Step step_1")
	assert.Contains(t, out, "## Step step_2")
	assert.Len(t, rec.Requests(), 3)
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, NewSchemaCommand(), "submit-tool-outputs")
	require.NoError(t, err)
	assert.Contains(t, out, `"tool_outputs"`)

	_, err = execute(t, NewSchemaCommand(), "unknown")
	require.Error(t, err)
}
