package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	timeout := 1 * time.Second
	client := http.Client{}
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = client.Do(req); err == nil {
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// testLookupEnv configures a server on a random port with a private in-memory database.
func testLookupEnv(extra map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := extra[key]; ok {
			return v, true
		}
		switch key {
		case "CASEFILE_ADDR":
			return "localhost:0", true
		case "CASEFILE_SQLITE_URL":
			return ":memory:", true
		default:
			return "", false
		}
	}
}

type testServer struct {
	url    string
	client http.Client
}

// startTestServer starts the test server, waits for it to be ready, and stops it when the test ends.
func startTestServer(t *testing.T, w io.Writer, lookupEnv func(string) (string, bool)) testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "Addr" {
				addrCh <- a.Value.String()
			}
			return a
		},
	})))

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := run(ctx, logger, lookupEnv); err != nil {
			cancel()
			assert.NoError(t, err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	select {
	case <-ctx.Done():
		t.Fatal("server failed to start")
		return testServer{} //nolint:exhaustruct // This is unreachable.
	case addr := <-addrCh:
		serverURL := fmt.Sprintf("http://%s", addr)
		require.NoError(t, waitForReady(ctx, serverURL+"/api/healthy"))
		return testServer{url: serverURL, client: http.Client{Timeout: 10 * time.Second}}
	}
}

// do sends a request with an optional JSON body and returns the status code and the response body.
func (s *testServer) do(t *testing.T, method, urlPath string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.url+urlPath, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// postJSON posts body and decodes the response into a value of type T.
func postJSON[T any](t *testing.T, s testServer, urlPath string, body any, wantStatus int) T {
	t.Helper()
	status, data := s.do(t, http.MethodPost, urlPath, body)
	require.Equal(t, wantStatus, status, string(data))
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func getJSON[T any](t *testing.T, s testServer, urlPath string) T {
	t.Helper()
	status, data := s.do(t, http.MethodGet, urlPath, nil)
	require.Equal(t, http.StatusOK, status, string(data))
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

type sseEvent struct {
	name string
	data string
}

// readEvents reads server-sent events from urlPath until the "done" event.
func (s *testServer) readEvents(t *testing.T, urlPath string) []sseEvent {
	t.Helper()
	resp, err := s.client.Get(s.url + urlPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var (
		events  []sseEvent
		current sseEvent
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			events = append(events, current)
			if current.name == "done" {
				return events
			}
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	t.Fatal("stream ended without a done event")
	return nil
}
