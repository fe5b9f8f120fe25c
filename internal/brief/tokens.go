package brief

import (
	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter measures document size in tokens for the overall brief cap.
type Counter interface {
	Count(s string) int
}

// tiktokenCounter counts with the cl100k_base encoding, a good
// approximation across providers.
type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

// estimateCounter is the offline fallback: one token per four characters.
type estimateCounter struct{}

func (estimateCounter) Count(s string) int { return len(s) / 4 }

// NewCounter returns a tiktoken-backed counter, or the character
// estimate when the encoding cannot be loaded (offline environments).
func NewCounter() Counter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return estimateCounter{}
	}
	return &tiktokenCounter{enc: enc}
}
