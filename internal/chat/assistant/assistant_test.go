package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/8adimka/expert_consult/internal/chat/model"
	"github.com/8adimka/expert_consult/internal/chat/persona"
	"github.com/8adimka/expert_consult/internal/config"
	"github.com/8adimka/expert_consult/internal/errorsx"
	"github.com/8adimka/expert_consult/internal/llm"
	"github.com/8adimka/expert_consult/internal/redisx"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter records every request and replies with a canned answer
type fakeCompleter struct {
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type memoryCache struct {
	data map[string]string
	sets int
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.data[key]
	if !ok {
		return redisx.ErrCacheMiss
	}
	*dest.(*string) = v
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}) error {
	m.data[key] = value.(string)
	m.sets++
	return nil
}

func (m *memoryCache) GenerateKey(prefix string, parts ...string) string {
	return redisx.GenerateKey(prefix, parts...)
}

type memoryHistory struct {
	records []*model.Consultation
	err     error
}

func (m *memoryHistory) RecordConsultation(ctx context.Context, c *model.Consultation) error {
	m.records = append(m.records, c)
	return m.err
}

var testLLM = config.LLM{APIKey: "sk-test", Model: "gpt-4o-mini", Temperature: 0.7}

func TestAnswer_EmptyQuestionMakesNoCall(t *testing.T) {
	for _, q := range []string{"", " ", "\t\n", "   \r\n  "} {
		cli := &fakeCompleter{reply: "unused"}
		a := New(testLLM, cli)

		reply, err := a.Answer(context.Background(), q, "Frontend web engineer")
		require.NoError(t, err)
		assert.Equal(t, KindEmptyQuestion, reply.Kind)
		assert.Equal(t, EmptyQuestionMessage, reply.Text)
		assert.Empty(t, cli.requests, "question %q must not reach the service", q)
	}
}

func TestAnswer_MissingCredentialMakesNoCall(t *testing.T) {
	cli := &fakeCompleter{reply: "unused"}
	a := New(config.LLM{Model: "gpt-4o-mini", Temperature: 0.7}, cli)

	reply, err := a.Answer(context.Background(), "How do I start web scraping in Python?", "Python engineer")
	require.NoError(t, err)
	assert.Equal(t, KindMissingCredential, reply.Kind)
	assert.Equal(t, MissingCredentialMessage, reply.Text)
	assert.Empty(t, cli.requests)
}

func TestAnswer_CredentialCheckedBeforeQuestion(t *testing.T) {
	cli := &fakeCompleter{}
	a := New(config.LLM{}, cli)

	reply, err := a.Answer(context.Background(), "   ", "Python engineer")
	require.NoError(t, err)
	assert.Equal(t, KindMissingCredential, reply.Kind)
}

func TestAnswer_BuildsTwoMessageConversation(t *testing.T) {
	cli := &fakeCompleter{reply: "Use requests and BeautifulSoup."}
	a := New(testLLM, cli)

	question := "  How do I start web scraping in Python?\n"
	reply, err := a.Answer(context.Background(), question, "Python engineer")
	require.NoError(t, err)

	assert.Equal(t, Reply{Kind: KindAnswer, Text: "Use requests and BeautifulSoup."}, reply)
	require.Len(t, cli.requests, 1)

	req := cli.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 0.7, req.Temperature)

	want := []model.Message{
		{Role: model.RoleSystem, Content: persona.Python.Instruction()},
		{Role: model.RoleUser, Content: question},
	}
	if diff := cmp.Diff(want, req.Conversation.Messages); diff != "" {
		t.Errorf("conversation mismatch (-want +got):\n%s", diff)
	}
}

func TestAnswer_UnknownPersonaUsesFallback(t *testing.T) {
	cli := &fakeCompleter{reply: "ok"}
	a := New(testLLM, cli)

	_, err := a.Answer(context.Background(), "hello", "Database administrator")
	require.NoError(t, err)
	require.Len(t, cli.requests, 1)
	assert.Equal(t, persona.FallbackInstruction, cli.requests[0].Conversation.SystemPrompt())
}

func TestAnswer_ServiceFailurePropagates(t *testing.T) {
	cause := errorsx.Upstream(errors.New("401 invalid api key"))
	cli := &fakeCompleter{err: cause}
	hist := &memoryHistory{}
	a := New(testLLM, cli, WithHistory(hist))

	reply, err := a.Answer(context.Background(), "question", "Python engineer")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errorsx.IsUpstream(err))
	assert.Equal(t, Reply{}, reply)
	assert.Len(t, cli.requests, 1, "failures must not be retried")
	assert.Empty(t, hist.records)
}

func TestAnswer_CacheHitSkipsService(t *testing.T) {
	cache := &memoryCache{data: map[string]string{}}
	cli := &fakeCompleter{reply: "fresh answer"}
	a := New(testLLM, cli, WithCache(cache))

	first, err := a.Answer(context.Background(), "What is a closure?", "Frontend web engineer")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := a.Answer(context.Background(), "What is a closure?", "Frontend web engineer")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "fresh answer", second.Text)

	assert.Len(t, cli.requests, 1)
	assert.Equal(t, 1, cache.sets)

	_, err = a.Answer(context.Background(), "What is a closure?", "Python engineer")
	require.NoError(t, err)
	assert.Len(t, cli.requests, 2, "a different persona must not share the cached answer")
}

func TestAnswer_RecordsHistory(t *testing.T) {
	hist := &memoryHistory{err: errors.New("mongo down")}
	cli := &fakeCompleter{reply: "Flexbox for one axis, grid for two."}
	a := New(testLLM, cli, WithHistory(hist))

	reply, err := a.Answer(context.Background(), "Flexbox or grid?", "frontend")
	require.NoError(t, err, "history failures must not fail the answer")
	assert.Equal(t, KindAnswer, reply.Kind)

	require.Len(t, hist.records, 1)
	rec := hist.records[0]
	assert.Equal(t, "frontend", rec.Persona)
	assert.Equal(t, "Flexbox or grid?", rec.Question)
	assert.Equal(t, "Flexbox for one axis, grid for two.", rec.Answer)
	assert.Equal(t, "gpt-4o-mini", rec.Model)
	assert.False(t, rec.Cached)
}

func TestAnswer_CacheHitIsRecordedAsCached(t *testing.T) {
	cache := &memoryCache{data: map[string]string{}}
	hist := &memoryHistory{}
	cli := &fakeCompleter{reply: "Use list comprehensions."}
	a := New(testLLM, cli, WithCache(cache), WithHistory(hist))

	for i := 0; i < 2; i++ {
		_, err := a.Answer(context.Background(), "Idiomatic loops?", "python")
		require.NoError(t, err)
	}

	require.Len(t, cli.requests, 1)
	require.Len(t, hist.records, 2)
	assert.False(t, hist.records[0].Cached)
	assert.True(t, hist.records[1].Cached)
	assert.Equal(t, "Use list comprehensions.", hist.records[1].Answer)
	assert.Equal(t, "python", hist.records[1].Persona)
}

func TestBuildConversation(t *testing.T) {
	conv := BuildConversation("q", "instr")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleSystem, conv.Messages[0].Role)
	assert.Equal(t, "instr", conv.Messages[0].Content)
	assert.Equal(t, model.RoleUser, conv.Messages[1].Role)
	assert.Equal(t, "q", conv.Messages[1].Content)
}
