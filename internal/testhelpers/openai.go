package testhelpers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
)

// FakePortrait is the image returned by [FakeOpenAI] for image generation requests, a single grey pixel.
var FakePortrait = func() []byte {
	var buf bytes.Buffer
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: 128})
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// FakeOpenAI serves the chat completion and image endpoints of the OpenAI API. Chat completions answer with the
// configured chunks, streamed one per server-sent event when the request asks for streaming.
type FakeOpenAI struct {
	server   *httptest.Server
	mu       sync.Mutex
	chunks   []string
	fail     bool
	requests []openai.ChatCompletionRequest
}

func NewFakeOpenAI(t *testing.T, chunks ...string) *FakeOpenAI {
	t.Helper()
	f := &FakeOpenAI{chunks: chunks}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", f.chatCompletions)
	mux.HandleFunc("POST /v1/images/generations", f.imageGenerations)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// BaseURL is the API base URL to configure clients with.
func (f *FakeOpenAI) BaseURL() string {
	return f.server.URL + "/v1"
}

// Fail makes subsequent requests answer with an internal server error.
func (f *FakeOpenAI) Fail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

// Requests returns the chat completion requests received so far.
func (f *FakeOpenAI) Requests() []openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]openai.ChatCompletionRequest(nil), f.requests...)
}

func (f *FakeOpenAI) failing(w http.ResponseWriter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.fail {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":{"message":"the model is asleep","type":"server_error"}}`))
	return true
}

func (f *FakeOpenAI) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.failing(w) {
		return
	}

	if !req.Stream {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ //nolint:exhaustruct // only what clients read
			ID:    "chatcmpl-fake",
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{ //nolint:exhaustruct // only what clients read
				Message: openai.ChatCompletionMessage{ //nolint:exhaustruct // only what clients read
					Role:    openai.ChatMessageRoleAssistant,
					Content: strings.Join(f.chunks, ""),
				},
				FinishReason: openai.FinishReasonStop,
			}},
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	for _, chunk := range f.chunks {
		data, _ := json.Marshal(openai.ChatCompletionStreamResponse{ //nolint:exhaustruct // only what clients read
			ID:    "chatcmpl-fake",
			Model: req.Model,
			Choices: []openai.ChatCompletionStreamChoice{{ //nolint:exhaustruct // only what clients read
				Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk}, //nolint:exhaustruct // content only
			}},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}

func (f *FakeOpenAI) imageGenerations(w http.ResponseWriter, _ *http.Request) {
	if f.failing(w) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"created":0,"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString(FakePortrait))
}
