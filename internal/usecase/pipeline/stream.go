package pipeline

import (
	"context"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

const streamBuffer = 16

// Stream resolves like Resolve but reports progress as it goes. The channel
// carries progress and heartbeat events with non-decreasing percent, then
// exactly one result or error event, and is closed afterwards. If ctx ends
// first the channel is closed without a terminal event.
func (s *Service) Stream(ctx context.Context, clientID string, c domain.SearchCriteria) <-chan domain.Event {
	out := make(chan domain.Event, streamBuffer)
	go s.stream(ctx, clientID, c, out)
	return out
}

func (s *Service) stream(ctx context.Context, clientID string, c domain.SearchCriteria, out chan<- domain.Event) {
	defer close(out)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := &emitter{ctx: streamCtx, out: out}
	if !e.progress(domain.Progress{Stage: domain.StageStarted, Message: "search started"}) {
		return
	}
	if err := s.admit(streamCtx, clientID, c); err != nil {
		e.fail(err)
		return
	}

	updates := make(chan domain.Progress, streamBuffer)
	report := func(stage domain.Stage, message string, percent int) {
		select {
		case updates <- domain.Progress{Stage: stage, Message: message, Percent: percent}:
		case <-streamCtx.Done():
		}
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := s.resolveWithDeadline(streamCtx, c, report)
		done <- outcome{result: res, err: err}
	}()

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case p := <-updates:
			if !e.progress(p) {
				return
			}
		case <-heartbeat.C:
			if !e.send(domain.Event{Type: domain.EventHeartbeat}) {
				return
			}
		case o := <-done:
			if !e.drain(updates) {
				return
			}
			if o.err != nil {
				e.fail(o.err)
				return
			}
			if e.progress(domain.Progress{Stage: domain.StageCompleted, Message: "done", Percent: 100}) {
				e.send(domain.Event{Type: domain.EventResult, Result: o.result})
			}
			return
		case <-streamCtx.Done():
			return
		}
	}
}

// emitter writes events in order and keeps percent monotonic.
type emitter struct {
	ctx     context.Context
	out     chan<- domain.Event
	percent int
}

func (e *emitter) send(ev domain.Event) bool {
	select {
	case e.out <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *emitter) progress(p domain.Progress) bool {
	if p.Percent < e.percent {
		p.Percent = e.percent
	}
	e.percent = p.Percent
	return e.send(domain.Event{Type: domain.EventProgress, Progress: &p})
}

func (e *emitter) fail(err error) {
	payload := domain.PublicError(err)
	e.send(domain.Event{Type: domain.EventError, Error: &payload})
}

// drain forwards progress already queued before the terminal event.
func (e *emitter) drain(updates <-chan domain.Progress) bool {
	for {
		select {
		case p := <-updates:
			if !e.progress(p) {
				return false
			}
		default:
			return true
		}
	}
}
