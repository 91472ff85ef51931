package cost

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/liliang-cn/federation-go/pkg/log"
)

// defaultEncoding is what current OpenAI-family models use.
const defaultEncoding = "cl100k_base"

// Counter counts tokens with tiktoken when an encoding is available, falling
// back to the 4-characters-per-token heuristic otherwise.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter builds a counter for a model name. An empty model selects the
// default encoding. Encoding load failures degrade to the heuristic.
func NewCounter(model string) *Counter {
	var (
		enc *tiktoken.Tiktoken
		err error
	)
	if model == "" {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
	} else {
		enc, err = tiktoken.EncodingForModel(model)
	}
	if err != nil {
		log.Debug("tiktoken encoding unavailable, using heuristic", "model", model, "error", err)
		enc = nil
	}
	return &Counter{enc: enc}
}

// Count returns the token count for a text. Non-empty text counts as at
// least one token.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}

	n := utf8.RuneCountInString(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
