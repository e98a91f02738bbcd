// Package streaming converts provider SSE streams into canonical event
// streams. The bridge guarantees the stream contract: zero or more
// non-terminal events, then exactly one terminal event, then close.
package streaming

import (
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/aiproxy/internal/httpclient"
	"github.com/blueberrycongee/aiproxy/pkg/types"
)

const doneSentinel = "[DONE]"

// chunk is the OpenAI streaming dialect. Anything that does not parse is
// skipped; providers interleave comments and unknown fields freely.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     *uint32 `json:"prompt_tokens"`
		CompletionTokens *uint32 `json:"completion_tokens"`
	} `json:"usage"`
}

// Bridge consumes sse on a new goroutine and returns the canonical event
// stream. Closing the returned stream releases the upstream connection
// and stops the goroutine.
func Bridge(sse *httpclient.SSEStream) *types.EventStream {
	events := make(chan types.StreamEvent, 16)
	abandoned := make(chan struct{})

	es := types.NewEventStream(events, func() {
		close(abandoned)
		sse.Close()
	})

	go run(sse, events, abandoned)
	return es
}

func run(sse *httpclient.SSEStream, events chan<- types.StreamEvent, abandoned <-chan struct{}) {
	defer close(events)

	send := func(ev types.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-abandoned:
			return false
		}
	}

	terminal := false
	for {
		line, err := sse.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !terminal {
				send(types.StreamError{Err: err})
			}
			return
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == doneSentinel {
			break
		}

		var c chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}

		if c.Usage != nil && !terminal {
			if !send(types.Usage{PromptTokens: c.Usage.PromptTokens, CompletionTokens: c.Usage.CompletionTokens}) {
				return
			}
		}

		if len(c.Choices) == 0 {
			continue
		}
		choice := c.Choices[0]

		if !terminal && choice.Delta.Content != nil && *choice.Delta.Content != "" {
			if !send(types.Delta{Text: *choice.Delta.Content}) {
				return
			}
		}

		if !terminal && choice.FinishReason != nil {
			reason := types.StopReasonFromFinish(*choice.FinishReason)
			terminal = true
			if !send(types.Stop{Reason: &reason}) {
				return
			}
		}
	}

	// Upstream ended, via [DONE] or EOF. A provider that closed without a
	// finish_reason still owes the consumer a terminal event.
	if !terminal {
		send(types.Stop{})
	}
}
