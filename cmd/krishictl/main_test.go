package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/krishi/pkg/messages"
	"github.com/jordanhubbard/krishi/pkg/models"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/v1/escalations/stream", false},
		{"https://krishi.example.org/", "wss://krishi.example.org/api/v1/escalations/stream", false},
		{"ws://10.0.0.5:9000", "ws://10.0.0.5:9000/api/v1/escalations/stream", false},
		{"ftp://host", "", true},
	}
	for _, tt := range tests {
		got, err := streamURL(tt.server)
		if tt.wantErr {
			assert.Error(t, err, tt.server)
			continue
		}
		require.NoError(t, err, tt.server)
		assert.Equal(t, tt.want, got)
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	outputJSON(&buf, []byte(`{"status":"answered"}`))
	assert.Equal(t, "{\n  \"status\": \"answered\"\n}\n", buf.String())

	buf.Reset()
	outputJSON(&buf, []byte("not json"))
	assert.Equal(t, "not json\n", buf.String())
}

func TestQueryCommand(t *testing.T) {
	var got models.QueryRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"answered","confidence":0.85}`))
	}))
	defer ts.Close()
	serverURL = ts.URL

	cmd := newQueryCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"my tomato has late blight spots", "--crop", "tomato", "--farmer", "f1"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "my tomato has late blight spots", got.Text)
	assert.Equal(t, "tomato", got.Crop)
	assert.Equal(t, "f1", got.FarmerID)
	assert.Contains(t, out.String(), `"status": "answered"`)
}

func TestFeedbackCommand_ValidatesRating(t *testing.T) {
	cmd := newFeedbackCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"q-1", "--rating", "7"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 5")
}

func TestClientReportsServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"farmer not found"}`))
	}))
	defer ts.Close()
	serverURL = ts.URL

	_, err := newClient().get("/api/v1/farmers/x", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"))
	assert.Contains(t, err.Error(), "farmer not found")
}

type fakeEventSource struct {
	tailed  []string
	durable []string
}

func (f *fakeEventSource) TailEvents(eventType string, handler func(*messages.EventMessage)) error {
	f.tailed = append(f.tailed, eventType)
	return nil
}

func (f *fakeEventSource) SubscribeEvents(eventType string, handler func(*messages.EventMessage)) error {
	f.durable = append(f.durable, eventType)
	return nil
}

func TestSubscribeEvents(t *testing.T) {
	src := &fakeEventSource{}
	handler := func(*messages.EventMessage) {}

	require.NoError(t, subscribeEvents(src, "query.*", false, handler))
	require.NoError(t, subscribeEvents(src, "query.escalated", true, handler))

	assert.Equal(t, []string{"query.*"}, src.tailed)
	assert.Equal(t, []string{"query.escalated"}, src.durable)
}

func TestEventsTailCommand_DurableFlag(t *testing.T) {
	cmd := newEventsTailCommand()
	flag := cmd.Flags().Lookup("durable")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}
