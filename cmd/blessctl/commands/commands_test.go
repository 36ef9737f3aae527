package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	lookupFn = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() {
		jsonOut, genStream, policy = false, false, ""
		genAPIKey, genBaseURL, genModel = "", "", ""
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--env-file", "testdata-missing.env"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestModelsCommand(t *testing.T) {
	out, err := run(t, map[string]string{"DEEPSEEK_API_KEY": "sk-test"}, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "deepseek-chat")
	assert.NotContains(t, out, "sk-test")

	out, err = run(t, nil, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "No server-side models configured")
}

func TestExamplesCommand(t *testing.T) {
	out, err := run(t, nil, "examples", "-r", "friend", "-s", "abstract", "-l", "short", "--json")
	require.NoError(t, err)

	var fewShot struct {
		Examples   []string `json:"examples"`
		MatchLevel string   `json:"match_level"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &fewShot))
	assert.NotEmpty(t, fewShot.Examples)
	assert.LessOrEqual(t, len(fewShot.Examples), 3)
	assert.NotEmpty(t, fewShot.MatchLevel)
}

func TestExamplesCommandRejectsUnknownRelationship(t *testing.T) {
	_, err := run(t, nil, "examples", "-r", "cousin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cousin")
}

func TestGenerateCommandWithOwnProvider(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-user", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"马到成功"}}]}`+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	out, err := run(t, nil, "generate", "-r", "friend", "-l", "short",
		"--api-key", "sk-user", "--base-url", upstream.URL, "--model", "byo", "--json")
	require.NoError(t, err)

	var result struct {
		Status   string `json:"status"`
		Variants []struct {
			Variant string `json:"variant"`
			Text    string `json:"text"`
			Status  string `json:"status"`
		} `json:"variants"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "done", result.Status)
	require.Len(t, result.Variants, 3)
	for _, v := range result.Variants {
		assert.Equal(t, "马到成功", v.Text)
		assert.Equal(t, "done", v.Status)
	}
}

func TestGenerateCommandRequiresWholeProvider(t *testing.T) {
	_, err := run(t, nil, "generate", "-r", "friend", "--api-key", "sk-user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be given together")
}

func TestGenerateCommandWithoutCredentials(t *testing.T) {
	out, err := run(t, nil, "generate", "-r", "friend", "-m", "deepseek-chat")
	require.NoError(t, err)
	assert.Contains(t, out, "没有可用的模型")
}
