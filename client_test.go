package aiproxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/aiproxy/config"
	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	aierrors "github.com/blueberrycongee/aiproxy/pkg/errors"
	"github.com/blueberrycongee/aiproxy/providers"
	"github.com/blueberrycongee/aiproxy/providers/null"
	"github.com/blueberrycongee/aiproxy/providers/openaicompat"
	"github.com/blueberrycongee/aiproxy/telemetry"
)

var captured = telemetry.NewCaptureSink()

func init() {
	telemetry.SetSink(captured)
}

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.Routing.Default = "null"
	return cfg
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		providers.EnvOpenAIKey, providers.EnvOpenRouterKey, providers.EnvAnthropicKey,
	} {
		t.Setenv(env, "")
	}
}

// fakeUpstream returns a client whose routing sends every model to an
// OpenAI-shaped test server.
func fakeUpstream(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	clearProviderEnv(t)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	transport := httpclient.New(httpclient.Config{RetryBase: time.Millisecond})
	cfg := offlineConfig()
	reg, err := providers.NewRegistry(cfg, transport)
	require.NoError(t, err)

	fake := openaicompat.New(
		openaicompat.Info{Name: "fake", DefaultBaseURL: srv.URL},
		openaicompat.WithAPIKey("sk-test"),
		openaicompat.WithHTTPClient(transport),
	)
	reg.RegisterChat(fake)
	reg.RegisterEmbed(fake)

	cfg.Routing.Rules = []config.RoutingRule{{Model: ".*", Provider: "fake"}}
	client, err := New(WithConfig(cfg), WithRegistry(reg), withTransport(transport))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestChatRequiresModel(t *testing.T) {
	clearProviderEnv(t)
	client, err := New(WithConfig(offlineConfig()))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Chat(context.Background(), &ChatRequest{})
	assert.True(t, aierrors.IsKind(err, aierrors.KindValidation))
}

func TestChatThroughNullProvider(t *testing.T) {
	clearProviderEnv(t)
	captured.Reset()

	client, err := New(WithConfig(offlineConfig()))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Model:    "offline-model",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, null.ResponseText, resp.Text)
	assert.Equal(t, "null", resp.Provider)
	assert.False(t, resp.Cached)

	logs := captured.Completions()
	require.Len(t, logs, 1)
	assert.Equal(t, "null", logs[0].Provider)
	assert.Equal(t, "stop", logs[0].StopReason)
	assert.NotEmpty(t, logs[0].RequestID)
}

func TestChatSecondCallServedFromCache(t *testing.T) {
	clearProviderEnv(t)

	client, err := New(WithConfig(offlineConfig()))
	require.NoError(t, err)
	defer client.Close()

	req := &ChatRequest{
		Model:    "offline-model",
		Messages: []ChatMessage{{Role: RoleUser, Content: "same question"}},
	}

	first, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
}

func TestNormalizationUnifiesCacheEntries(t *testing.T) {
	clearProviderEnv(t)

	client, err := New(WithConfig(offlineConfig()))
	require.NoError(t, err)
	defer client.Close()

	first, err := client.Chat(context.Background(), &ChatRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: RoleUser, Content: "  padded  "}},
	})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := client.Chat(context.Background(), &ChatRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: RoleUser, Content: "padded"}},
	})
	require.NoError(t, err)
	assert.True(t, second.Cached)
}

func TestWithoutCacheDisablesCaching(t *testing.T) {
	clearProviderEnv(t)

	client, err := New(WithConfig(offlineConfig()), WithoutCache())
	require.NoError(t, err)
	defer client.Close()

	req := &ChatRequest{Model: "m", Messages: []ChatMessage{{Role: RoleUser, Content: "q"}}}
	_, err = client.Chat(context.Background(), req)
	require.NoError(t, err)

	second, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.Cached)
}

func TestChatRoutesThroughRules(t *testing.T) {
	client := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"from fake"},"finish_reason":"stop"}]}`)
	})

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "fake", resp.Provider)
	assert.Equal(t, "from fake", resp.Text)
}

func TestChatStreamDeliversCanonicalEvents(t *testing.T) {
	client := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"str\"}}]}\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"eam\"}}]}\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n")
		io.WriteString(w, "data: [DONE]\n")
	})

	es, err := client.ChatStream(context.Background(), &ChatRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	defer es.Close()

	var text string
	var terminals int
	for {
		ev, err := es.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if d, ok := ev.(Delta); ok {
			text += d.Text
		}
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, "stream", text)
	assert.Equal(t, 1, terminals)
}

func TestEmbedDedupsInputsBeforeProvider(t *testing.T) {
	clearProviderEnv(t)

	client, err := New(WithConfig(offlineConfig()))
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Embed(context.Background(), &EmbedRequest{
		Model:  "embed-model",
		Inputs: []string{"a", "a ", "", "b"},
	})
	require.NoError(t, err)

	// null returns one vector per (deduped) input.
	assert.Len(t, resp.Vectors, 2)
	assert.Equal(t, uint32(2), resp.Usage)
}

func TestMissingRouteTargetIsValidation(t *testing.T) {
	clearProviderEnv(t)

	cfg := config.Default() // default routes to openai, which has no key
	client, err := New(WithConfig(cfg))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Chat(context.Background(), &ChatRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})

	e, ok := aierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, aierrors.KindValidation, e.Kind)
	assert.Contains(t, e.Error(), "provider 'openai' not found or lacks chat capability")
}
