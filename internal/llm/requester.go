package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/ytflow/internal/utils"
)

// DefaultSystemPrompt frames every plain completion.
const DefaultSystemPrompt = "You are an expert in YouTrack workflow scripting. Your task is to help users create effective and efficient workflow scripts for YouTrack."

// CodeSystemPrompt is used for code generation; %s is the target language.
const CodeSystemPrompt = "You are an expert in %s programming, specializing in YouTrack workflow scripts. Generate clean, efficient, and well-documented code."

// Request is a single completion request. A nil Temperature uses the default
// of the call; zero is a valid temperature.
type Request struct {
	Prompt      string
	System      string
	Temperature *float32
	MaxTokens   int
}

// Response is the outcome of a completion. Content is empty when Success is false.
type Response struct {
	Success bool
	Content string
	Error   string
}

// CodeResponse carries extracted code alongside the raw model output.
type CodeResponse struct {
	Success    bool
	Code       string
	RawContent string
	Error      string
}

// Requester sends prompts to a chat model with per-call sampling options.
type Requester struct {
	cfg     Config
	factory ChatModelFactory
}

// NewRequester returns a Requester bound to cfg.
func NewRequester(cfg Config) *Requester {
	return &Requester{cfg: cfg, factory: NewChatModel}
}

// WithFactory swaps the model factory; used by tests.
func (r *Requester) WithFactory(f ChatModelFactory) *Requester {
	r.factory = f
	return r
}

func (r *Requester) messages(req Request, defaultSystem string, defaultTemp float32) ([]*schema.Message, []model.Option) {
	system := req.System
	if system == "" {
		system = defaultSystem
	}
	temp := defaultTemp
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(req.Prompt),
	}
	return msgs, []model.Option{model.WithTemperature(temp), model.WithMaxTokens(maxTokens)}
}

// Complete sends a prompt and returns the model's reply.
// Model errors are reported in the Response as well as returned.
func (r *Requester) Complete(ctx context.Context, req Request) (Response, error) {
	chatModel, err := r.factory(ctx, r.cfg)
	if err != nil {
		return Response{Error: err.Error()}, fmt.Errorf("create model: %w", err)
	}

	msgs, opts := r.messages(req, DefaultSystemPrompt, DefaultTemperature)
	return r.complete(ctx, chatModel, msgs, opts)
}

func (r *Requester) complete(ctx context.Context, chatModel model.BaseChatModel, msgs []*schema.Message, opts []model.Option) (Response, error) {
	resp, err := chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		return Response{Error: err.Error()}, fmt.Errorf("llm generate: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return Response{Error: "no content in response"}, errors.New("no content in response")
	}
	return Response{Success: true, Content: resp.Content}, nil
}

// GenerateCode asks for code in the given language and extracts fenced blocks
// from the reply. Without fences the whole reply is treated as code. An empty
// req.System uses CodeSystemPrompt and a nil Temperature DefaultCodeTemperature.
func (r *Requester) GenerateCode(ctx context.Context, req Request, language string) (CodeResponse, error) {
	chatModel, err := r.factory(ctx, r.cfg)
	if err != nil {
		return CodeResponse{Error: err.Error()}, fmt.Errorf("create model: %w", err)
	}

	msgs, opts := r.messages(req, fmt.Sprintf(CodeSystemPrompt, language), DefaultCodeTemperature)
	resp, err := r.complete(ctx, chatModel, msgs, opts)
	if err != nil {
		return CodeResponse{Error: resp.Error}, err
	}
	return CodeResponse{
		Success:    true,
		Code:       utils.ExtractCodeBlocks(resp.Content),
		RawContent: resp.Content,
	}, nil
}

// StreamCode behaves like GenerateCode but forwards each chunk to onChunk as it arrives.
func (r *Requester) StreamCode(ctx context.Context, req Request, language string, onChunk func(string)) (CodeResponse, error) {
	chatModel, err := r.factory(ctx, r.cfg)
	if err != nil {
		return CodeResponse{Error: err.Error()}, fmt.Errorf("create model: %w", err)
	}

	msgs, opts := r.messages(req, fmt.Sprintf(CodeSystemPrompt, language), DefaultCodeTemperature)
	stream, err := chatModel.Stream(ctx, msgs, opts...)
	if err != nil {
		return CodeResponse{Error: err.Error()}, fmt.Errorf("llm stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CodeResponse{Error: err.Error(), RawContent: sb.String()}, fmt.Errorf("llm stream recv: %w", err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if onChunk != nil {
			onChunk(chunk.Content)
		}
	}

	content := sb.String()
	if strings.TrimSpace(content) == "" {
		return CodeResponse{Error: "no content in response"}, errors.New("no content in response")
	}
	return CodeResponse{Success: true, Code: utils.ExtractCodeBlocks(content), RawContent: content}, nil
}
