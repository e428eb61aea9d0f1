package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"scout/internal/llm/llmtest"
)

func TestChunks(t *testing.T) {
	cases := []struct {
		text string
		n    int
		want []string
	}{
		{"", 3, nil},
		{"one", 3, []string{"one"}},
		{"a b c d e", 2, []string{"a b ", "c d ", "e"}},
		{"  lead\nand trail  ", 1, []string{"  lead\n", "and ", "trail  "}},
		{"x y", 0, []string{"x ", "y"}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Chunks(tc.text, tc.n), "Chunks(%q, %d)", tc.text, tc.n)
	}
}

func TestAskStream_SendsChunksAfterValidation(t *testing.T) {
	text := "An IAMA is required before deploying a high-risk algorithm."
	a := newAgent(t, llmtest.NewClient(llmtest.Text(text)), nil, WithChunkWords(2))

	out := make(chan string, 100)
	ans, err := a.AskStream(context.Background(), "q", out)
	require.NoError(t, err)

	var got []string
	for c := range out {
		got = append(got, c)
	}
	require.Greater(t, len(got), 1)
	require.Equal(t, ans.Answer, strings.Join(got, ""))
}

func TestAskStream_NothingSentOnFailure(t *testing.T) {
	a := newAgent(t, llmtest.NewClient(llmtest.Answer(map[string]any{"answer": 123})), nil)

	out := make(chan string, 10)
	_, err := a.AskStream(context.Background(), "q", out)
	require.ErrorIs(t, err, ErrSchemaValidation)

	_, open := <-out
	require.False(t, open, "channel must be closed with nothing sent")
}
