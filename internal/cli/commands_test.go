package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, in string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(viper.New(), strings.NewReader(in), &out, &errOut)
	p, err := NewPrinter(&out, PrinterOptions{MarkdownStyle: "notty", CodeFormatter: "noop"})
	require.NoError(t, err)
	app.printer = p

	root := app.RootCmd()
	cfg := filepath.Join(t.TempDir(), "parley.yaml")
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestHistoryCmd_Chronological(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"chats":[
			{"prompt":"newest","response":"three"},
			{"prompt":"middle","response":"two"},
			{"prompt":"oldest","response":"one"}]}`))
	}))
	defer ts.Close()

	out, _, err := runCmd(t, "", "--server", ts.URL, "--token", "tok", "history")
	require.NoError(t, err)

	oldest := strings.Index(out, "oldest")
	middle := strings.Index(out, "middle")
	newest := strings.Index(out, "newest")
	require.True(t, oldest >= 0 && middle >= 0 && newest >= 0, out)
	assert.Less(t, oldest, middle)
	assert.Less(t, middle, newest)
}

func TestHistoryCmd_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	defer ts.Close()

	_, _, err := runCmd(t, "", "--server", ts.URL, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 Unauthorized")
}

func TestChatCmd_RendersReply(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Try this:\n```html\n<p>hi</p>\n```\n"))
	}))
	defer ts.Close()

	out, _, err := runCmd(t, "", "--server", ts.URL, "--token", "tok", "chat", "make", "a", "page")
	require.NoError(t, err)
	assert.Contains(t, out, "Try this:")
	assert.Contains(t, out, "<p>hi</p>")
	assert.Equal(t, 1, strings.Count(out, PreviewNote))
}

func TestChatCmd_Raw(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain reply"))
	}))
	defer ts.Close()

	out, _, err := runCmd(t, "", "--server", ts.URL, "chat", "--raw", "hello")
	require.NoError(t, err)
	assert.Equal(t, "plain reply\n", out)
}

func TestLoginCmd_PrintsToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"tok-123","expires_at":"2030-01-01T00:00:00Z"}`))
	}))
	defer ts.Close()

	out, _, err := runCmd(t, "secret\n", "--server", ts.URL, "login", "--email", "ada@example.com", "--save=false")
	require.NoError(t, err)
	assert.Equal(t, "tok-123\n", out)
}
