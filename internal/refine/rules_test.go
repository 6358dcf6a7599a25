package refine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localscribe/localscribe/internal/segment"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "drops fillers and capitalizes",
			raw:  "um so we should uh ship the release",
			want: "So we should ship the release.",
		},
		{
			name: "capitalizes pronoun i",
			raw:  "i think i agree",
			want: "I think I agree.",
		},
		{
			name: "keeps existing terminal punctuation",
			raw:  "is this ready?",
			want: "Is this ready?",
		},
		{
			name: "capitalizes after sentence break",
			raw:  "done. next item",
			want: "Done. Next item.",
		},
		{
			name: "drops dangling comma before closing",
			raw:  "we agreed on the plan,",
			want: "We agreed on the plan.",
		},
		{
			name: "all fillers yields empty",
			raw:  "um uh hmm",
			want: "",
		},
		{
			name: "normalizes whitespace",
			raw:  "  too   many    spaces ",
			want: "Too many spaces.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.raw))
		})
	}
}

func TestRulesRefinerPreservesAlignment(t *testing.T) {
	r := &rulesRefiner{}
	in := []segment.Segment{
		{ID: 1, Start: 0, End: 2.5, RawText: "um hello there"},
		{ID: 2, Start: 2.5, End: 4.0, RawText: "i was saying"},
	}

	out, err := r.RefineSegments(context.Background(), in, "")
	require.NoError(t, err)
	require.NoError(t, CheckAlignment(in, out))

	assert.Equal(t, "Hello there.", out[0].RefinedText)
	assert.Equal(t, "I was saying.", out[1].RefinedText)
	assert.Equal(t, "um hello there", out[0].RawText)
}

func TestRulesRefinerDeterministic(t *testing.T) {
	r := &rulesRefiner{}
	in := []segment.Segment{{ID: 1, Start: 0, End: 1, RawText: "uh so um yeah the quarterly numbers"}}

	first, err := r.RefineSegments(context.Background(), in, "")
	require.NoError(t, err)
	second, err := r.RefineSegments(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
