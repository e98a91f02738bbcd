// Package null provides an offline provider for tests, smoke runs, and
// wiring checks. It never touches the network.
package null

import (
	"context"

	"github.com/blueberrycongee/aiproxy/pkg/provider"
	"github.com/blueberrycongee/aiproxy/pkg/types"
)

// ProviderName is the registry identifier.
const ProviderName = "null"

// ResponseText is the fixed chat reply.
const ResponseText = "[null provider response]"

// EmbedDims is the dimensionality of the zero vectors returned by Embed.
const EmbedDims = 3

// Provider is stateless; the zero value is ready to use.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (*Provider) Name() string { return ProviderName }

// Capabilities reports what the null provider can serve.
func (*Provider) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapabilityChat,
		provider.CapabilityChatStream,
		provider.CapabilityEmbed,
	}
}

// Chat echoes the fixed response. Prompt usage is the summed byte length
// of the message contents, which makes request plumbing visible in tests.
func (*Provider) Chat(_ context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	var promptLen uint32
	for _, m := range req.Messages {
		promptLen += uint32(len(m.Content))
	}
	reason := types.StopReasonStop
	return &types.ChatResponse{
		Text:              ResponseText,
		Provider:          ProviderName,
		Model:             req.Model,
		UsagePromptTokens: &promptLen,
		StopReason:        &reason,
		TurnID:            "null-turn",
	}, nil
}

// ChatStream yields the fixed response as a single delta then a stop.
func (p *Provider) ChatStream(ctx context.Context, req *types.ChatRequest) (*types.EventStream, error) {
	events := make(chan types.StreamEvent, 2)
	reason := types.StopReasonStop
	events <- types.Delta{Text: ResponseText}
	events <- types.Stop{Reason: &reason}
	close(events)
	return types.NewEventStream(events, nil), nil
}

// Embed returns a zero vector per input; usage is the input count.
func (*Provider) Embed(_ context.Context, req *types.EmbedRequest) (*types.EmbedResponse, error) {
	vectors := make([][]float32, len(req.Inputs))
	for i := range vectors {
		vectors[i] = make([]float32, EmbedDims)
	}
	return &types.EmbedResponse{
		Vectors:  vectors,
		Usage:    uint32(len(req.Inputs)),
		Provider: ProviderName,
		Model:    req.Model,
	}, nil
}
