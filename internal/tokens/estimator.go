// Package tokens estimates prompt sizes for request logging.
package tokens

import (
	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts prompt tokens with a cl100k_base codec. Ollama models use
// their own vocabularies, so the count is an estimate for observability, not
// an exact bill.
type Estimator struct {
	codec tokenizer.Codec
}

// NewEstimator builds an estimator. The codec is loaded once and reused; it
// is safe for concurrent use.
func NewEstimator() (*Estimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &Estimator{codec: codec}, nil
}

// Count returns the estimated token count of text. On encoder failure it
// falls back to a bytes/4 heuristic rather than failing the request.
func (e *Estimator) Count(text string) int {
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}
