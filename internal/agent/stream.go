package agent

import (
	"context"
	"unicode"

	"scout/internal/schema"
)

// AskStream answers query like Ask and then sends the answer text to out in
// word chunks for progressive display. Nothing is sent unless the answer
// validated. out is closed when AskStream returns.
func (a *Agent) AskStream(ctx context.Context, query string, out chan<- string) (*schema.Answer, error) {
	defer close(out)

	ans, err := a.Ask(ctx, query)
	if err != nil {
		return nil, err
	}

	for _, chunk := range Chunks(ans.Answer, a.cfg.chunkWords) {
		select {
		case out <- chunk:
		case <-ctx.Done():
			// The answer is already committed; only the display stops.
			return ans, ctx.Err()
		}
	}
	return ans, nil
}

// Chunks splits text into pieces of n words. Whitespace stays attached to
// the preceding word, so concatenating the chunks yields text unchanged.
func Chunks(text string, n int) []string {
	if n < 1 {
		n = 1
	}
	var chunks []string
	start, words := 0, 0
	inWord := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			if words == n {
				chunks = append(chunks, text[start:i])
				start, words = i, 0
			}
			words++
		}
		inWord = !space
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}
