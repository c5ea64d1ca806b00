package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatModel struct {
	content string
	chunks  []string
	err     error

	gotMessages []*schema.Message
	gotOpts     *model.Options
}

func (m *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.gotMessages = input
	m.gotOpts = model.GetCommonOptions(nil, opts...)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.gotMessages = input
	if m.err != nil {
		return nil, m.err
	}
	msgs := make([]*schema.Message, len(m.chunks))
	for i, c := range m.chunks {
		msgs[i] = schema.AssistantMessage(c, nil)
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func newStubRequester(m *stubChatModel) *Requester {
	return NewRequester(Config{Provider: ProviderOpenAI}).WithFactory(func(context.Context, Config) (model.BaseChatModel, error) {
		return m, nil
	})
}

func TestRequester_CompleteDefaults(t *testing.T) {
	m := &stubChatModel{content: "hello"}
	resp, err := newStubRequester(m).Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "hello", resp.Content)
	require.Len(t, m.gotMessages, 2)
	assert.Equal(t, DefaultSystemPrompt, m.gotMessages[0].Content)
	assert.Equal(t, "hi", m.gotMessages[1].Content)
	require.NotNil(t, m.gotOpts.Temperature)
	assert.InDelta(t, 0.7, *m.gotOpts.Temperature, 0.001)
	require.NotNil(t, m.gotOpts.MaxTokens)
	assert.Equal(t, 4000, *m.gotOpts.MaxTokens)
}

func TestRequester_CompleteError(t *testing.T) {
	m := &stubChatModel{err: errors.New("boom")}
	resp, err := newStubRequester(m).Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "boom", resp.Error)
}

func TestRequester_CompleteEmpty(t *testing.T) {
	m := &stubChatModel{content: "  "}
	resp, err := newStubRequester(m).Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, "no content in response", resp.Error)
}

func TestRequester_GenerateCode(t *testing.T) {
	m := &stubChatModel{content: "Here:\n```javascript\nconst a = 1;\n```\nand\n```js\nconst b = 2;\n```"}
	resp, err := newStubRequester(m).GenerateCode(context.Background(), Request{Prompt: "make it"}, "JavaScript")
	require.NoError(t, err)

	assert.Equal(t, "const a = 1;\n\nconst b = 2;", resp.Code)
	assert.Contains(t, m.gotMessages[0].Content, "expert in JavaScript programming")
	assert.InDelta(t, 0.2, *m.gotOpts.Temperature, 0.001)
}

func TestRequester_StreamCode(t *testing.T) {
	m := &stubChatModel{chunks: []string{"```js\n", "exports.rule = 1;\n", "```"}}
	var got []string
	resp, err := newStubRequester(m).StreamCode(context.Background(), Request{Prompt: "p"}, "JavaScript", func(s string) {
		got = append(got, s)
	})
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, "exports.rule = 1;", strings.TrimSpace(resp.Code))
}

func TestRequester_ZeroTemperatureIsKept(t *testing.T) {
	m := &stubChatModel{content: "```js\nx();\n```"}
	zero := float32(0)
	_, err := newStubRequester(m).GenerateCode(context.Background(), Request{Prompt: "p", Temperature: &zero}, "JavaScript")
	require.NoError(t, err)

	require.NotNil(t, m.gotOpts.Temperature)
	assert.Zero(t, *m.gotOpts.Temperature)
}
