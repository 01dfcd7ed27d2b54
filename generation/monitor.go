package generation

import (
	"time"

	"github.com/poiesic/examscribe/core"
)

// Monitor observes a batch of answers being generated. Methods may be
// called from several goroutines at once.
type Monitor interface {
	Start(total int)
	QuestionFinished(answer core.Answer, elapsed time.Duration)
	Finish(answers []core.Answer)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (noopMonitor) Start(int)                                   {}
func (noopMonitor) QuestionFinished(core.Answer, time.Duration) {}
func (noopMonitor) Finish([]core.Answer)                        {}

type multiMonitor []Monitor

// Monitors fans events out to every non-nil monitor.
func Monitors(monitors ...Monitor) Monitor {
	var out multiMonitor
	for _, m := range monitors {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (m multiMonitor) Start(total int) {
	for _, mon := range m {
		mon.Start(total)
	}
}

func (m multiMonitor) QuestionFinished(answer core.Answer, elapsed time.Duration) {
	for _, mon := range m {
		mon.QuestionFinished(answer, elapsed)
	}
}

func (m multiMonitor) Finish(answers []core.Answer) {
	for _, mon := range m {
		mon.Finish(answers)
	}
}
