package streaming

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	"github.com/blueberrycongee/aiproxy/pkg/types"
)

func bridgeFor(t *testing.T, raw string) *types.EventStream {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, raw)
	}))
	t.Cleanup(srv.Close)

	client := httpclient.New(httpclient.Config{RetryBase: time.Millisecond})
	sse, err := client.PostSSE(context.Background(), httpclient.Call{Provider: "openai", Model: "m"}, srv.URL, nil, struct{}{})
	require.NoError(t, err)
	return Bridge(sse)
}

func drain(t *testing.T, es *types.EventStream) []types.StreamEvent {
	t.Helper()
	var events []types.StreamEvent
	for {
		ev, err := es.Recv()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestBridgeDeltasThenStop(t *testing.T) {
	es := bridgeFor(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n"+
			"data:{\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n"+
			"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n"+
			"data: [DONE]\n")
	defer es.Close()

	events := drain(t, es)
	require.Len(t, events, 3)
	assert.Equal(t, types.Delta{Text: "Hel"}, events[0])
	assert.Equal(t, types.Delta{Text: "lo"}, events[1])

	stop, ok := events[2].(types.Stop)
	require.True(t, ok)
	require.NotNil(t, stop.Reason)
	assert.Equal(t, types.StopReasonStop, *stop.Reason)
}

func TestBridgeIgnoresGarbageLines(t *testing.T) {
	es := bridgeFor(t,
		": keep-alive comment\n"+
			"data: this is not json\n"+
			"event: ping\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n"+
			"data: [DONE]\n")
	defer es.Close()

	events := drain(t, es)
	require.Len(t, events, 2)
	assert.Equal(t, types.Delta{Text: "ok"}, events[0])
	assert.True(t, events[1].Terminal())
}

func TestBridgeEOFWithoutFinishYieldsNilStop(t *testing.T) {
	es := bridgeFor(t, "data: {\"choices\":[{\"delta\":{\"content\":\"cut\"}}]}\n")
	defer es.Close()

	events := drain(t, es)
	require.Len(t, events, 2)
	stop, ok := events[1].(types.Stop)
	require.True(t, ok)
	assert.Nil(t, stop.Reason)
}

func TestBridgeDoneWithoutFinishYieldsNilStop(t *testing.T) {
	es := bridgeFor(t, "data: [DONE]\n")
	defer es.Close()

	events := drain(t, es)
	require.Len(t, events, 1)
	stop, ok := events[0].(types.Stop)
	require.True(t, ok)
	assert.Nil(t, stop.Reason)
}

func TestBridgeSingleTerminalDespiteLateLines(t *testing.T) {
	es := bridgeFor(t,
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"length\"}]}\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n"+
			"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n"+
			"data: [DONE]\n")
	defer es.Close()

	events := drain(t, es)
	require.Len(t, events, 1)
	stop, ok := events[0].(types.Stop)
	require.True(t, ok)
	require.NotNil(t, stop.Reason)
	assert.Equal(t, types.StopReasonLength, *stop.Reason)
}

func TestBridgeMapsToolCallsFinish(t *testing.T) {
	es := bridgeFor(t,
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n"+
			"data: [DONE]\n")
	defer es.Close()

	events := drain(t, es)
	require.Len(t, events, 1)
	stop := events[0].(types.Stop)
	require.NotNil(t, stop.Reason)
	assert.Equal(t, types.StopReasonToolUse, *stop.Reason)
}

func TestBridgeForwardsUsage(t *testing.T) {
	es := bridgeFor(t,
		"data: {\"choices\":[],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":9}}\n"+
			"data: [DONE]\n")
	defer es.Close()

	events := drain(t, es)
	require.Len(t, events, 2)
	usage, ok := events[0].(types.Usage)
	require.True(t, ok)
	require.NotNil(t, usage.PromptTokens)
	assert.Equal(t, uint32(5), *usage.PromptTokens)
	require.NotNil(t, usage.CompletionTokens)
	assert.Equal(t, uint32(9), *usage.CompletionTokens)
}

func TestBridgeCloseStopsProducer(t *testing.T) {
	// A server that keeps the stream open; Close must not hang.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.Config{RetryBase: time.Millisecond})
	sse, err := client.PostSSE(context.Background(), httpclient.Call{Provider: "openai"}, srv.URL, nil, struct{}{})
	require.NoError(t, err)

	es := Bridge(sse)
	ev, err := es.Recv()
	require.NoError(t, err)
	assert.Equal(t, types.Delta{Text: "x"}, ev)

	done := make(chan struct{})
	go func() {
		es.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close hung")
	}
}
