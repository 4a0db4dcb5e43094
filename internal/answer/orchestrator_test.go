package answer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/internal/llm"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
)

type fakeSearcher struct {
	hits []services.HitResult
	err  error
	last services.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req services.SearchRequest) (services.SearchResult, error) {
	f.last = req
	if f.err != nil {
		return services.SearchResult{}, f.err
	}
	return services.SearchResult{Hits: f.hits, Total: len(f.hits)}, nil
}

type fakeStream struct {
	mu      sync.Mutex
	chunks  []string
	endless bool
	failErr error
	closes  int
}

func (s *fakeStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	if s.endless {
		return "x", nil
	}
	if s.failErr != nil {
		return "", s.failErr
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type fakeProvider struct {
	answer    string
	err       error
	stream    *fakeStream
	streamErr error
	calls     int
	prompt    llm.Prompt
}

func (p *fakeProvider) Model() string { return "fake-model" }

func (p *fakeProvider) Complete(_ context.Context, prompt llm.Prompt) (string, error) {
	p.calls++
	p.prompt = prompt
	return p.answer, p.err
}

func (p *fakeProvider) Stream(_ context.Context, prompt llm.Prompt) (llm.ChunkStream, error) {
	p.calls++
	p.prompt = prompt
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	return p.stream, nil
}

func sampleHits() []services.HitResult {
	return []services.HitResult{
		{ID: "d1", Score: 2, Fields: map[string]model.Value{
			"title": model.TextValue("Eventyr fra Norge"),
			"tags":  {Kind: model.FieldTypeKeyword, Str: "folk", Strs: []string{"folk", "classic"}},
			"year":  model.IntValue(1843),
		}},
		{ID: "d2", Score: 1, Fields: map[string]model.Value{"title": model.TextValue("Huldra")}},
	}
}

func collect(t *testing.T, s *Stream) []Event {
	t.Helper()
	var events []Event
	for {
		ev, ok := s.Next(context.Background())
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestAnswer(t *testing.T) {
	searcher := &fakeSearcher{hits: sampleHits()}
	provider := &fakeProvider{answer: " Asbjørnsen og Moe samlet eventyr [1]. "}
	o := NewOrchestrator(provider, nil)

	resp, err := o.Answer(context.Background(), searcher, services.AnswerRequest{Query: "Hvem samlet eventyr?"})
	require.NoError(t, err)
	assert.Equal(t, "Asbjørnsen og Moe samlet eventyr [1].", resp.Answer)
	assert.Equal(t, "fake-model", resp.Model)
	assert.Len(t, resp.Sources, 2)

	assert.Equal(t, defaultSearchLimit, searcher.last.Limit)
	assert.Equal(t, defaultTemperature, provider.prompt.Temperature)
	assert.Equal(t, defaultMaxTokens, provider.prompt.MaxTokens)
	assert.Contains(t, provider.prompt.System, FallbackAnswer)

	user := provider.prompt.User
	assert.Contains(t, user, "[1] id: d1\ntags: folk, classic\ntitle: Eventyr fra Norge\n")
	assert.Contains(t, user, "[2] id: d2\ntitle: Huldra\n")
	assert.NotContains(t, user, "1843", "only text and keyword fields are sent")
	assert.True(t, strings.HasSuffix(user, "Question: Hvem samlet eventyr?\n"))
}

func TestAnswerWithoutHitsSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	o := NewOrchestrator(provider, nil)

	resp, err := o.Answer(context.Background(), &fakeSearcher{}, services.AnswerRequest{Query: "ukjent"})
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, resp.Answer)
	assert.Equal(t, 0, provider.calls)
}

func TestAnswerSearchErrorSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	o := NewOrchestrator(provider, nil)
	searchErr := internalErrors.NewQuerySyntaxError(3, "unexpected ')'")

	_, err := o.Answer(context.Background(), &fakeSearcher{err: searchErr}, services.AnswerRequest{Query: "ab)"})
	assert.ErrorIs(t, err, internalErrors.ErrQuerySyntax)
	assert.Equal(t, 0, provider.calls)

	_, err = o.Stream(context.Background(), &fakeSearcher{err: searchErr}, services.AnswerRequest{Query: "ab)"})
	assert.ErrorIs(t, err, internalErrors.ErrQuerySyntax)
	assert.Equal(t, 0, provider.calls)
}

func TestAnswerProviderError(t *testing.T) {
	upstream := internalErrors.NewUpstreamError("fake", 500, errors.New("boom"))
	o := NewOrchestrator(&fakeProvider{err: upstream}, nil)

	_, err := o.Answer(context.Background(), &fakeSearcher{hits: sampleHits()}, services.AnswerRequest{Query: "eventyr"})
	assert.Equal(t, internalErrors.KindUpstream, internalErrors.KindOf(err))
}

func TestAnswerDisabled(t *testing.T) {
	o := NewOrchestrator(nil, nil)
	assert.False(t, o.Enabled())

	_, err := o.Answer(context.Background(), &fakeSearcher{}, services.AnswerRequest{Query: "q"})
	assert.ErrorIs(t, err, internalErrors.ErrUpstreamUnavailable)
	_, err = o.Stream(context.Background(), &fakeSearcher{}, services.AnswerRequest{Query: "q"})
	assert.ErrorIs(t, err, internalErrors.ErrUpstreamUnavailable)
}

func TestResolveValidation(t *testing.T) {
	hot := float32(3)
	tests := []struct {
		name  string
		req   services.AnswerRequest
		field string
	}{
		{"blank query", services.AnswerRequest{Query: "  "}, "query"},
		{"search limit too large", services.AnswerRequest{Query: "q", SearchLimit: 21}, "search_limit"},
		{"temperature out of range", services.AnswerRequest{Query: "q", Temperature: &hot}, "temperature"},
		{"negative max tokens", services.AnswerRequest{Query: "q", MaxTokens: -1}, "max_tokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolve(tt.req)
			var validationErr *internalErrors.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}

	p, err := resolve(services.AnswerRequest{Query: "q", SystemPrompt: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.systemPrompt)
}

func TestSourceValuesAreTruncated(t *testing.T) {
	long := strings.Repeat("å", maxSourceRunes+500)
	hits := []services.HitResult{{ID: "d1", Fields: map[string]model.Value{"body": model.TextValue(long)}}}

	prompt := buildPrompt("q", hits, params{})
	assert.Contains(t, prompt.User, strings.Repeat("å", maxSourceRunes)+"…")
	assert.NotContains(t, prompt.User, strings.Repeat("å", maxSourceRunes+1))
}

func TestStreamEvents(t *testing.T) {
	stream := &fakeStream{chunks: []string{"Hel", "lo"}}
	o := NewOrchestrator(&fakeProvider{stream: stream}, nil)

	s, err := o.Stream(context.Background(), &fakeSearcher{hits: sampleHits()}, services.AnswerRequest{Query: "eventyr"})
	require.NoError(t, err)
	events := collect(t, s)

	assert.Equal(t, []EventType{EventMetadata, EventChunk, EventChunk, EventDone}, eventTypes(events))
	meta := events[0].Data.(MetadataEvent)
	assert.Equal(t, "fake-model", meta.Model)
	assert.Len(t, meta.Sources, 2)
	assert.Equal(t, "Hel", events[1].Data.(ChunkEvent).Text)
	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, 1, stream.closes)

	_, ok := s.Next(context.Background())
	assert.False(t, ok, "a finished stream cannot be restarted")
}

func TestStreamCancelledAfterThreeChunks(t *testing.T) {
	stream := &fakeStream{endless: true}
	o := NewOrchestrator(&fakeProvider{stream: stream}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := o.Stream(ctx, &fakeSearcher{hits: sampleHits()}, services.AnswerRequest{Query: "eventyr"})
	require.NoError(t, err)

	var events []Event
	for len(events) < 4 {
		ev, ok := s.Next(ctx)
		require.True(t, ok)
		events = append(events, ev)
	}
	assert.Equal(t, []EventType{EventMetadata, EventChunk, EventChunk, EventChunk}, eventTypes(events))

	cancel()
	_, ok := s.Next(ctx)
	assert.False(t, ok, "no done event after cancellation")
	_, ok = s.Next(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, stream.closes)

	s.Close()
	s.Close()
	assert.Equal(t, 1, stream.closes, "Close is idempotent")
}

func TestStreamProviderErrorEndsWithErrorEvent(t *testing.T) {
	stream := &fakeStream{chunks: []string{"Partial"}, failErr: internalErrors.NewUpstreamError("fake", 502, errors.New("bad gateway"))}
	o := NewOrchestrator(&fakeProvider{stream: stream}, nil)

	s, err := o.Stream(context.Background(), &fakeSearcher{hits: sampleHits()}, services.AnswerRequest{Query: "eventyr"})
	require.NoError(t, err)
	events := collect(t, s)

	assert.Equal(t, []EventType{EventMetadata, EventChunk, EventError}, eventTypes(events))
	errEvent := events[2].Data.(ErrorEvent)
	assert.Equal(t, string(internalErrors.KindUpstream), errEvent.Kind)
	assert.Equal(t, StateFailed, s.State())
}

func TestStreamStartFailure(t *testing.T) {
	provider := &fakeProvider{streamErr: internalErrors.NewUpstreamError("fake", 401, errors.New("unauthorized"))}
	o := NewOrchestrator(provider, nil)

	s, err := o.Stream(context.Background(), &fakeSearcher{hits: sampleHits()}, services.AnswerRequest{Query: "eventyr"})
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventMetadata, EventError}, eventTypes(collect(t, s)))
}

func TestStreamWithoutHits(t *testing.T) {
	provider := &fakeProvider{}
	o := NewOrchestrator(provider, nil)

	s, err := o.Stream(context.Background(), &fakeSearcher{}, services.AnswerRequest{Query: "ukjent"})
	require.NoError(t, err)
	events := collect(t, s)

	assert.Equal(t, []EventType{EventMetadata, EventChunk, EventDone}, eventTypes(events))
	assert.Equal(t, FallbackAnswer, events[1].Data.(ChunkEvent).Text)
	assert.Equal(t, 0, provider.calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "state(42)", State(42).String())
}
