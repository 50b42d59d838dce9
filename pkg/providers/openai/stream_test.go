package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpc-help/sccbot/pkg/modeladapter"
)

const sseBody = "data: {\"choices\":[{\"delta\":{\"content\":\"Use \"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"qsub\"}}]}\n\n" +
	": keep-alive\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\".\"}}]}\n\n" +
	"data: [DONE]\n\n"

func sseServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sseBody))
	}))
}

func TestCompleteStreamDeliversDeltas(t *testing.T) {
	srv := sseServer(t)
	defer srv.Close()

	a := New(srv.URL, "token", "openai/gpt-4o-mini")

	var chunks []modeladapter.StreamChunk
	reply, err := a.CompleteStream(context.Background(), testChat(), func(c modeladapter.StreamChunk) error {
		chunks = append(chunks, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Use qsub.", reply.TextContent())

	require.Len(t, chunks, 4)
	assert.Equal(t, "Use ", chunks[0].Text)
	assert.Equal(t, "qsub", chunks[1].Text)
	assert.Equal(t, ".", chunks[2].Text)
	assert.True(t, chunks[3].Done)
}

func TestCompleteStreamConsumerStopsEarly(t *testing.T) {
	srv := sseServer(t)
	defer srv.Close()

	a := New(srv.URL, "token", "openai/gpt-4o-mini")

	var delivered int
	reply, err := a.CompleteStream(context.Background(), testChat(), func(c modeladapter.StreamChunk) error {
		delivered++
		return errors.New("client went away")
	})

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	// Full text is still accumulated for the conversation history.
	assert.Equal(t, "Use qsub.", reply.TextContent())
}

func TestCompleteStreamNilFunc(t *testing.T) {
	srv := sseServer(t)
	defer srv.Close()

	a := New(srv.URL, "token", "openai/gpt-4o-mini")

	reply, err := a.CompleteStream(context.Background(), testChat(), nil)

	require.NoError(t, err)
	assert.Equal(t, "Use qsub.", reply.TextContent())
}

func TestCompleteStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no stream for you", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := New(srv.URL, "token", "openai/gpt-4o-mini")

	_, err := a.CompleteStream(context.Background(), testChat(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}
