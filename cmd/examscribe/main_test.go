package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/examscribe"
	"github.com/poiesic/examscribe/ai/mock"
	"github.com/poiesic/examscribe/config"
	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const paper = `QUESTION ONE (10 MARKS)
a) Define photosynthesis in plants (4 marks)
b) Describe the light reactions in detail (6 marks)`

const plainPaper = `1. What is the role of chlorophyll in plants?
2. Why do leaves change colour in autumn?`

type plainText struct{}

func (plainText) Extract(raw []byte) (string, error) { return string(raw), nil }

type stubRenderer struct{}

func (stubRenderer) Render(_ []core.Answer, documentID string) (string, error) {
	return "answer_scheme_" + documentID + ".pdf", nil
}

// useTestProcessor swaps in a processor backed by test doubles that share
// one in-memory index across commands.
func useTestProcessor(t *testing.T) *mock.MockProvider {
	t.Helper()
	provider := mock.NewMockProvider().(*mock.MockProvider)
	index, err := badger.NewMemoryIndex()
	require.NoError(t, err)

	orig := newProcessor
	newProcessor = func(cfg *config.Config, opts ...examscribe.ProcessorOption) (*examscribe.Processor, error) {
		opts = append(opts,
			examscribe.WithProvider(provider),
			examscribe.WithIndex(index),
			examscribe.WithTextExtractor(plainText{}),
			examscribe.WithRenderer(stubRenderer{}),
		)
		return examscribe.NewProcessor(cfg, opts...)
	}
	t.Cleanup(func() {
		newProcessor = orig
		index.Close()
	})
	return provider
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"examscribe"}, args...))
	return out.String(), err
}

func writePaper(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func findFlag[T cli.Flag](t *testing.T, cmd *cli.Command, name string) T {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(T); ok {
			for _, n := range flag.Names() {
				if n == name {
					return f
				}
			}
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	var zero T
	return zero
}

func command(t *testing.T, name string) *cli.Command {
	t.Helper()
	for _, cmd := range newApp().Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestFlagDefaults(t *testing.T) {
	process := command(t, "process")
	assert.True(t, findFlag[*cli.StringFlag](t, process, "file").Required)
	assert.Equal(t, "local", findFlag[*cli.StringFlag](t, process, "client").Value)
	assert.Empty(t, findFlag[*cli.StringFlag](t, process, "strategy").Value)
	assert.True(t, findFlag[*cli.BoolFlag](t, process, "progress").Value)

	search := command(t, "search")
	assert.True(t, findFlag[*cli.StringFlag](t, search, "client").Required)
	assert.True(t, findFlag[*cli.StringFlag](t, search, "query").Required)
	assert.Equal(t, 3, findFlag[*cli.IntFlag](t, search, "limit").Value)
	assert.False(t, findFlag[*cli.BoolFlag](t, search, "verbose").Value)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "process", "--file", "x.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestProcessValidation(t *testing.T) {
	useTestProcessor(t)

	t.Run("file is required", func(t *testing.T) {
		_, err := run(t, "process")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "process", "--file", filepath.Join(t.TempDir(), "absent.pdf"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read paper")
	})

	t.Run("invalid strategy", func(t *testing.T) {
		_, err := run(t, "process", "--file", writePaper(t, paper), "--strategy", "guess")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid strategy")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := run(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "process", "--file", writePaper(t, paper))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load configuration")
	})
}

func TestProcessPrintsResult(t *testing.T) {
	provider := useTestProcessor(t)

	out, err := run(t, "process", "--file", writePaper(t, paper), "--progress=false")
	require.NoError(t, err)

	var result core.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "structured", result.Strategy)
	assert.Equal(t, 2, result.QuestionsCount)
	assert.Equal(t, "1a", result.Answers[0].QuestionNumber)
	assert.Equal(t, "answer_scheme_"+result.DocumentID+".pdf", result.FilePath)
	assert.Equal(t, 2, provider.GetMockGenerator().CallCount())
}

func TestProcessNoQuestions(t *testing.T) {
	useTestProcessor(t)

	out, err := run(t, "process", "--file", writePaper(t, "Just a cover page."), "--progress=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoQuestionsFound)
	assert.Empty(t, out)
}

func TestSearchAfterRetrievalRun(t *testing.T) {
	useTestProcessor(t)

	_, err := run(t, "process", "--file", writePaper(t, plainPaper), "--strategy", "retrieval", "--client", "alice", "--progress=false")
	require.NoError(t, err)

	out, err := run(t, "search", "--client", "alice", "--query", "chlorophyll")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 hits")
	assert.Contains(t, out, "What is the role of chlorophyll in plants?")

	out, err = run(t, "search", "--client", "bob", "--query", "chlorophyll")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 0 hits")
}

func TestSearchVerboseTracesStages(t *testing.T) {
	useTestProcessor(t)

	_, err := run(t, "process", "--file", writePaper(t, plainPaper), "--strategy", "retrieval", "--client", "alice", "--progress=false")
	require.NoError(t, err)

	out, err := run(t, "search", "--client", "alice", "--query", "chlorophyll", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, `Searching client_alice for "chlorophyll"`)
	assert.Contains(t, out, fmt.Sprintf("Embedded query (%d dimensions)", mock.DefaultDimension))
	assert.Contains(t, out, "Retrieved 1 hits in")
	assert.Contains(t, out, "Found 1 hits")

	out, err = run(t, "search", "--client", "alice", "--query", "chlorophyll")
	require.NoError(t, err)
	assert.NotContains(t, out, "Searching")
}

func TestSearchTracerReportsFailure(t *testing.T) {
	var out bytes.Buffer
	tracer := &searchTracer{w: &out}

	tracer.Start("client_bob", "q")
	tracer.Finish(nil, core.ErrExternalService)

	assert.Contains(t, out.String(), "Search failed after")
	assert.Contains(t, out.String(), core.ErrExternalService.Error())
}

func TestSearchValidation(t *testing.T) {
	useTestProcessor(t)

	_, err := run(t, "search", "--client", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")

	_, err = run(t, "search", "--client", "alice", "--query", "x", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}
