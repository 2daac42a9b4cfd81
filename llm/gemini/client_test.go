package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/gemini-chat-go/llm"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...llm.ClientOption) *Client {
	t.Helper()
	base := []llm.ClientOption{
		llm.WithAPIKey("test-key"),
		llm.WithBaseURL(srv.URL),
		llm.WithModel("test-model"),
		llm.WithMaxRetries(0),
	}
	c, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func writeSSE(w http.ResponseWriter, payloads ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, p := range payloads {
		fmt.Fprintf(w, "data: %s\r\n\r\n", p)
	}
}

func collect(t *testing.T, events <-chan llm.StreamEvent) ([]*llm.ResponseChunk, error) {
	t.Helper()
	var chunks []*llm.ResponseChunk
	for ev := range events {
		if ev.Err != nil {
			return chunks, ev.Err
		}
		chunks = append(chunks, ev.Chunk)
	}
	return chunks, nil
}

func TestGenerateStream_SendsTranscriptAndModalities(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotBody))
		writeSSE(w)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	events, err := c.GenerateStream(context.Background(), &llm.GenerateRequest{
		Contents: []llm.Content{
			llm.TextContent(llm.RoleUser, "prime"),
			llm.TextContent(llm.RoleModel, "ack"),
			{Role: llm.RoleModel, Parts: []llm.Part{llm.InlineDataPart{MIMEType: "image/png", Data: []byte("img")}}},
		},
		Modalities:       []llm.Modality{llm.ModalityImage, llm.ModalityText},
		ResponseMIMEType: "text/plain",
	})
	require.NoError(t, err)
	_, err = collect(t, events)
	require.NoError(t, err)

	contents := gotBody["contents"].([]interface{})
	require.Len(t, contents, 3)
	first := contents[0].(map[string]interface{})
	assert.Equal(t, "user", first["role"])

	third := contents[2].(map[string]interface{})
	part := third["parts"].([]interface{})[0].(map[string]interface{})
	inline := part["inlineData"].(map[string]interface{})
	assert.Equal(t, "aW1n", inline["data"])

	gc := gotBody["generationConfig"].(map[string]interface{})
	assert.Equal(t, []interface{}{"IMAGE", "TEXT"}, gc["responseModalities"])
	assert.Equal(t, "text/plain", gc["responseMimeType"])
}

func TestGenerateStream_DecodesTaggedParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"Here you go:"}]}}]}`,
			`{"usageMetadata":{"totalTokenCount":12}}`,
			`{"candidates":[{"content":{"role":"model"}}]}`,
			`{"candidates":[{"content":{"role":"model","parts":[{"inlineData":{"mimeType":"image/png","data":"aW1n"}},{"executableCode":{}}]},"finishReason":"STOP"}]}`,
		)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	events, err := c.GenerateStream(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)

	chunks, err := collect(t, events)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, []llm.Part{llm.TextPart{Text: "Here you go:"}}, chunks[0].Candidates[0].Content.Parts)

	assert.Empty(t, chunks[1].Candidates)
	require.NotNil(t, chunks[1].Usage)
	assert.Equal(t, 12, chunks[1].Usage.TotalTokens)

	require.NotNil(t, chunks[2].Candidates[0].Content)
	assert.Nil(t, chunks[2].Candidates[0].Content.Parts)

	parts := chunks[3].Candidates[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, llm.InlineDataPart{MIMEType: "image/png", Data: []byte("img")}, parts[0])
	assert.Equal(t, llm.UnknownPart{Kind: "executableCode"}, parts[1])
	assert.Equal(t, "STOP", chunks[3].Candidates[0].FinishReason)
}

func TestGenerateStream_MalformedPayloadEndsWithError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"candidates":[{"content":{"parts":[{"text":"A"}]}}]}`,
			`{"candidates":[`,
		)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	events, err := c.GenerateStream(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)

	chunks, err := collect(t, events)
	assert.Len(t, chunks, 1)
	require.Error(t, err)

	var te *llm.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestGenerateStream_APIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GenerateStream(context.Background(), &llm.GenerateRequest{})
	require.Error(t, err)

	var te *llm.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Contains(t, te.Error(), "API key not valid")
}

func TestGenerateStream_RetriesUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeSSE(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, llm.WithMaxRetries(1))
	events, err := c.GenerateStream(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)

	chunks, err := collect(t, events)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateStream_LargeInlinePayload(t *testing.T) {
	big := strings.Repeat("QUJD", 300_000) // 1.2MB of base64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"`+big+`"}}]}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	events, err := c.GenerateStream(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)

	chunks, err := collect(t, events)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	part := chunks[0].Candidates[0].Content.Parts[0].(llm.InlineDataPart)
	assert.Len(t, part.Data, 900_000)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := NewClient()
	assert.Error(t, err)
}

func TestGenerateStream_CancelEndsWithError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, `{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		events, err := c.GenerateStream(ctx, &llm.GenerateRequest{})
		require.NoError(t, err)

		first := <-events
		require.NotNil(t, first.Chunk)
		cancel()

		_, err = collect(t, events)
		require.Error(t, err, "run %d closed without an error event", i)
		assert.ErrorIs(t, err, context.Canceled)
	}
}
