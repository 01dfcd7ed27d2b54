package generation

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/examscribe/core"
	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(&buf)

	p.QuestionFinished(core.Answer{}, 0)
	assert.Empty(t, buf.String(), "events before Start are ignored")

	p.Start(2)
	p.QuestionFinished(core.Answer{Text: "ok"}, 0)
	assert.Contains(t, buf.String(), "Answered: 1/2 (50.0%) - 0 failed")

	p.QuestionFinished(core.Answer{Err: errors.New("boom")}, 0)
	assert.Contains(t, buf.String(), "Answered: 2/2 (100.0%) - 1 failed")
	assert.Greater(t, p.Elapsed(), time.Duration(0))

	p.Finish(nil)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
	assert.Zero(t, p.Elapsed())
}
