package refine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localscribe/localscribe/internal/media"
	"github.com/localscribe/localscribe/internal/pipeline"
	"github.com/localscribe/localscribe/internal/segment"
)

type fakeRunner struct {
	ResultToReturn media.RunResult
	ErrorToReturn  error
	Calls          [][]string
}

func (f *fakeRunner) Run(ctx context.Context, tool string, args []string, timeout time.Duration) (media.RunResult, error) {
	f.Calls = append(f.Calls, append([]string{tool}, args...))
	return f.ResultToReturn, f.ErrorToReturn
}

func writeFakeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.gguf")
	require.NoError(t, os.WriteFile(path, []byte("GGUF"), 0o644))
	return path
}

func TestNewSelectsBackend(t *testing.T) {
	r, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rules", r.Name())

	r, err = New(Config{Backend: "llamacpp", Mode: ModeSummary, Model: "/m.gguf"}, &fakeRunner{})
	require.NoError(t, err)
	assert.Equal(t, "llamacpp", r.Name())
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Mode: "poetry"}, nil)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))

	_, err = New(Config{Backend: "rules", Mode: ModeBullets}, nil)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))

	_, err = New(Config{Backend: "llamacpp"}, nil)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))

	_, err = New(Config{Backend: "cloud"}, nil)
	assert.Equal(t, pipeline.VALIDATION_FAILED, pipeline.CodeOf(err))
}

func TestLlamaRefinerRewritesBatch(t *testing.T) {
	runner := &fakeRunner{ResultToReturn: media.RunResult{
		Stdout: "1. Hello there.\n2. The numbers look good.\n",
	}}
	r, err := New(Config{Backend: "llamacpp", Model: writeFakeModel(t)}, runner)
	require.NoError(t, err)

	in := []segment.Segment{
		{ID: 1, Start: 0, End: 2, RawText: "um hello there"},
		{ID: 2, Start: 2, End: 5, RawText: "the numbers uh look good"},
	}
	out, err := r.RefineSegments(context.Background(), in, "")
	require.NoError(t, err)
	require.NoError(t, CheckAlignment(in, out))
	assert.Equal(t, "Hello there.", out[0].RefinedText)
	assert.Equal(t, "The numbers look good.", out[1].RefinedText)

	require.Len(t, runner.Calls, 1)
	assert.Equal(t, "llama-cli", runner.Calls[0][0])
	assert.Contains(t, runner.Calls[0], "--no-display-prompt")
}

func TestLlamaRefinerInstructionOverride(t *testing.T) {
	runner := &fakeRunner{ResultToReturn: media.RunResult{Stdout: "1. Done.\n"}}
	r, err := New(Config{Backend: "llamacpp", Model: writeFakeModel(t)}, runner)
	require.NoError(t, err)

	_, err = r.RefineSegments(context.Background(),
		[]segment.Segment{{ID: 1, End: 1, RawText: "done"}}, "Translate each line to French.")
	require.NoError(t, err)

	prompt := runner.Calls[0][len(runner.Calls[0])-1]
	assert.Contains(t, prompt, "Translate each line to French.")
}

func TestLlamaRefinerIncompleteOutputFails(t *testing.T) {
	runner := &fakeRunner{ResultToReturn: media.RunResult{Stdout: "1. Only one line.\n"}}
	r, err := New(Config{Backend: "llamacpp", Model: writeFakeModel(t)}, runner)
	require.NoError(t, err)

	_, err = r.RefineSegments(context.Background(), []segment.Segment{
		{ID: 1, End: 1, RawText: "first"},
		{ID: 2, Start: 1, End: 2, RawText: "second"},
	}, "")
	require.Error(t, err)
	assert.Equal(t, pipeline.INFERENCE_FAILED, pipeline.CodeOf(err))
}

func TestLlamaRefinerMissingModel(t *testing.T) {
	r, err := New(Config{Backend: "llamacpp", Model: "/nonexistent/m.gguf"}, &fakeRunner{})
	require.NoError(t, err)

	_, err = r.RefineSegments(context.Background(),
		[]segment.Segment{{ID: 1, End: 1, RawText: "hi"}}, "")
	require.Error(t, err)
	assert.Equal(t, pipeline.MODEL_LOAD_FAILED, pipeline.CodeOf(err))
}

func TestCheckAlignmentCatchesDrift(t *testing.T) {
	in := []segment.Segment{{ID: 1, Start: 0, End: 2, RawText: "hello"}}

	shifted := []segment.Segment{{ID: 1, Start: 0, End: 2.5, RawText: "hello"}}
	assert.Error(t, CheckAlignment(in, shifted))

	reworded := []segment.Segment{{ID: 1, Start: 0, End: 2, RawText: "goodbye"}}
	assert.Error(t, CheckAlignment(in, reworded))

	assert.Error(t, CheckAlignment(in, nil))
	assert.NoError(t, CheckAlignment(in, in))
}

func TestParseNumberedLinesIgnoresNoise(t *testing.T) {
	out := "model loaded\n1. First.\nsome chatter\n2. Second.\n99. bogus\n"
	texts, err := parseNumberedLines(out, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"First.", "Second."}, texts)
}
