package types

// EmbedRequest is the provider-agnostic embedding request.
type EmbedRequest struct {
	Model     string   `json:"model"`
	Inputs    []string `json:"inputs"`
	ClientKey string   `json:"client_key,omitempty"`
}

// Clone returns a deep copy for normalization.
func (r *EmbedRequest) Clone() *EmbedRequest {
	out := *r
	out.Inputs = append([]string(nil), r.Inputs...)
	return &out
}

// EmbedResponse is the provider-agnostic embedding result. Vectors are
// returned in input order after normalization dropped empties and
// duplicates.
type EmbedResponse struct {
	Vectors [][]float32 `json:"vectors"`

	// Usage is a provider-defined unit count. OpenAI-compatible embeds
	// report 0; the null provider reports the input count.
	Usage uint32 `json:"usage"`

	Provider string `json:"provider"`
	Model    string `json:"model"`
	Cached   bool   `json:"cached"`
}
