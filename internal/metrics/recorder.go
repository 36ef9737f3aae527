package metrics

import (
	"time"
	"unicode/utf8"

	"github.com/Conceptual-Machines/blessing-api/internal/generation"
)

// Variant outcomes
const (
	OutcomeDone     = "done"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Recorder receives per-variant measurements
type Recorder interface {
	RecordTimeToFirstToken(model, variant string, ttft time.Duration)
	RecordVariantOutcome(model, variant, outcome string, duration time.Duration, chars int)
}

// RoundListener turns orchestrator events into metrics for every recorder
func RoundListener(recorders ...Recorder) generation.Listener {
	return func(ev generation.Event) {
		variant := string(ev.Variant)
		switch ev.Type {
		case generation.EventToken:
			if ev.TokenIndex == 1 {
				for _, r := range recorders {
					r.RecordTimeToFirstToken(ev.Model, variant, ev.Elapsed)
				}
			}
		case generation.EventDone:
			record(recorders, ev, OutcomeDone)
		case generation.EventError:
			record(recorders, ev, OutcomeError)
		case generation.EventCanceled:
			record(recorders, ev, OutcomeCanceled)
		}
	}
}

func record(recorders []Recorder, ev generation.Event, outcome string) {
	chars := utf8.RuneCountInString(ev.Text)
	for _, r := range recorders {
		r.RecordVariantOutcome(ev.Model, string(ev.Variant), outcome, ev.Elapsed, chars)
	}
}
