// Package normalize canonicalizes requests before routing so that cache
// keys, provider payloads, and transcripts all see one representation of
// the same logical request.
package normalize

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/blueberrycongee/aiproxy/pkg/types"
)

const (
	defaultTemperature = 1.0
	defaultTopP        = 1.0
	maxOutputTokensCap = 100_000
)

// Text canonicalizes a piece of user text: Unicode NFC, leading BOM
// stripped, CRLF folded to LF, surrounding whitespace trimmed.
func Text(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}

// Chat returns a normalized copy of req. The input is never mutated.
//
// After normalization Temperature and TopP are always set (defaults fill
// absent values), stop sequences are sorted and deduplicated or absent,
// and MaxOutputTokens never exceeds the cap.
func Chat(req *types.ChatRequest) *types.ChatRequest {
	out := req.Clone()

	for i := range out.Messages {
		out.Messages[i].Content = Text(out.Messages[i].Content)
	}

	temp := defaultTemperature
	if out.Temperature != nil {
		temp = clamp(*out.Temperature, 0, 2)
	}
	temp = round(temp, 3)
	out.Temperature = &temp

	topP := defaultTopP
	if out.TopP != nil {
		topP = clamp(*out.TopP, 0, 1)
	}
	topP = round(topP, 4)
	out.TopP = &topP

	if len(out.StopSequences) > 0 {
		out.StopSequences = sortDedup(out.StopSequences)
	}
	if len(out.StopSequences) == 0 {
		out.StopSequences = nil
	}

	if out.MaxOutputTokens != nil && *out.MaxOutputTokens > maxOutputTokensCap {
		capped := uint32(maxOutputTokensCap)
		out.MaxOutputTokens = &capped
	}

	return out
}

// Embed returns a normalized copy of req: inputs cleaned, empties
// dropped, duplicates removed keeping the first occurrence in order.
func Embed(req *types.EmbedRequest) *types.EmbedRequest {
	out := req.Clone()

	seen := make(map[string]struct{}, len(out.Inputs))
	inputs := out.Inputs[:0]
	for _, in := range out.Inputs {
		cleaned := Text(in)
		if cleaned == "" {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		inputs = append(inputs, cleaned)
	}
	out.Inputs = inputs

	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

func sortDedup(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i > 0 && s == out[n-1] {
			continue
		}
		out[n] = s
		n++
	}
	return out[:n]
}
