package answer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/llm"
	"github.com/gcbaptista/go-search-service/services"
)

// EventType names a streamed answer event.
type EventType string

const (
	EventMetadata EventType = "metadata"
	EventChunk    EventType = "chunk"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one element of an answer stream. Data is one of MetadataEvent, ChunkEvent,
// DoneEvent or ErrorEvent.
type Event struct {
	Type EventType
	Data interface{}
}

// MetadataEvent opens every stream.
type MetadataEvent struct {
	Model        string               `json:"model"`
	SearchTookMs int64                `json:"search_took_ms"`
	Sources      []services.HitResult `json:"sources"`
}

// ChunkEvent carries a text increment.
type ChunkEvent struct {
	Text string `json:"text"`
}

// DoneEvent terminates a successful stream.
type DoneEvent struct {
	LLMTookMs   int64 `json:"llm_took_ms"`
	TotalTookMs int64 `json:"total_took_ms"`
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Stream is a finite, pull-based sequence of answer events: metadata, any number of
// chunks, then done or error. Once its context is cancelled it yields nothing more.
type Stream struct {
	mu       sync.Mutex
	o        *Orchestrator
	state    State
	pending  []Event
	chunks   llm.ChunkStream
	done     <-chan struct{}
	cancel   context.CancelFunc
	start    time.Time
	llmStart time.Time
	closed   bool
}

// Stream searches and starts a streamed generation. Validation and search errors are
// returned directly; provider failures are reported as the terminal error event.
func (o *Orchestrator) Stream(ctx context.Context, searcher Searcher, req services.AnswerRequest) (*Stream, error) {
	if o.provider == nil {
		return nil, internalErrors.ErrUpstreamUnavailable
	}
	p, err := resolve(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := retrieve(ctx, searcher, req, p)
	if err != nil {
		o.finish(modeStream, outcomeFor(err, outcomeSearchError), StateSearching, err)
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		o:      o,
		state:  StateGenerating,
		done:   streamCtx.Done(),
		cancel: cancel,
		start:  start,
	}
	s.pending = append(s.pending, Event{Type: EventMetadata, Data: MetadataEvent{
		Model:        o.provider.Model(),
		SearchTookMs: time.Since(start).Milliseconds(),
		Sources:      result.Hits,
	}})

	if len(result.Hits) == 0 {
		s.pending = append(s.pending,
			Event{Type: EventChunk, Data: ChunkEvent{Text: FallbackAnswer}},
			Event{Type: EventDone, Data: DoneEvent{TotalTookMs: time.Since(start).Milliseconds()}},
		)
		s.state = StateDone
		o.finish(modeStream, outcomeNoHits, StateDone, nil)
		return s, nil
	}

	s.llmStart = time.Now()
	chunks, err := o.provider.Stream(streamCtx, buildPrompt(req.Query, result.Hits, p))
	if err != nil {
		if internalErrors.KindOf(err) == internalErrors.KindCancelled {
			cancel()
			o.finish(modeStream, outcomeCancelled, StateGenerating, err)
			return nil, err
		}
		s.pending = append(s.pending, errorEvent(err))
		s.state = StateFailed
		o.finish(modeStream, outcomeUpstream, StateGenerating, err)
		return s, nil
	}
	s.chunks = chunks
	return s, nil
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Data: ErrorEvent{
		Kind:    string(internalErrors.KindOf(err)),
		Message: err.Error(),
	}}
}

// State returns the current lifecycle stage.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Next returns the next event, or false when the stream is finished, closed or its
// context was cancelled.
func (s *Stream) Next(ctx context.Context) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Event{}, false
	}
	if s.cancelled(ctx) {
		s.abortLocked()
		return Event{}, false
	}

	if len(s.pending) > 0 {
		ev := s.pending[0]
		s.pending = s.pending[1:]
		return ev, true
	}
	if s.chunks == nil || s.state == StateDone || s.state == StateFailed {
		s.closeLocked()
		return Event{}, false
	}

	text, err := s.chunks.Recv()
	if s.cancelled(ctx) {
		s.abortLocked()
		return Event{}, false
	}
	switch {
	case errors.Is(err, io.EOF):
		s.state = StateDone
		s.releaseLocked()
		s.o.finish(modeStream, outcomeSuccess, StateDone, nil)
		return Event{Type: EventDone, Data: DoneEvent{
			LLMTookMs:   time.Since(s.llmStart).Milliseconds(),
			TotalTookMs: time.Since(s.start).Milliseconds(),
		}}, true
	case err != nil:
		s.state = StateFailed
		s.releaseLocked()
		s.o.finish(modeStream, outcomeUpstream, StateStreaming, err)
		return errorEvent(err), true
	}
	s.state = StateStreaming
	return Event{Type: EventChunk, Data: ChunkEvent{Text: text}}, true
}

// Close releases the provider stream. It is safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Stream) abortLocked() {
	if !s.closed && s.state != StateDone && s.state != StateFailed {
		s.o.finish(modeStream, outcomeCancelled, s.state, nil)
	}
	s.closeLocked()
}

func (s *Stream) releaseLocked() {
	if s.chunks != nil {
		_ = s.chunks.Close()
		s.chunks = nil
	}
}

func (s *Stream) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.pending = nil
	s.releaseLocked()
	s.cancel()
}
