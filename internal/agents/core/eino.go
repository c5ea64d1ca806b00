/*
Package core provides shared functionality for Eino chains.
*/
package core

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/ytflow/internal/llm"
)

// ParseFunc converts raw model output into a typed result.
type ParseFunc[T any] func(content string) (T, error)

// TextChain is a reusable pipeline: Template -> Model -> Parser.
// D is the template data, T the parsed result.
type TextChain[D, T any] struct {
	chain compose.Runnable[D, T]
	name  string
}

// NewTextChain compiles a prompt template, a chat model call and a parser into
// one Eino graph. opts are applied to every model call.
func NewTextChain[D, T any](
	ctx context.Context,
	name string,
	chatModel model.BaseChatModel,
	templateStr string,
	parse ParseFunc[T],
	opts ...model.Option,
) (*TextChain[D, T], error) {
	tmpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	templateFunc := func(ctx context.Context, input D) ([]*schema.Message, error) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, input); err != nil {
			return nil, fmt.Errorf("execute template: %w", err)
		}
		return []*schema.Message{
			schema.SystemMessage(llm.DefaultSystemPrompt),
			schema.UserMessage(buf.String()),
		}, nil
	}

	// BaseChatModel is wrapped in a lambda so models without tool binding still fit.
	modelFunc := func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return chatModel.Generate(ctx, input, opts...)
	}

	parserFunc := func(ctx context.Context, output *schema.Message) (T, error) {
		return parse(output.Content)
	}

	graph := compose.NewGraph[D, T]()

	_ = graph.AddLambdaNode("prompt", compose.InvokableLambda(templateFunc), compose.WithNodeName(name+".prompt"))
	_ = graph.AddLambdaNode("model", compose.InvokableLambda(modelFunc), compose.WithNodeName(name+".model"))
	_ = graph.AddLambdaNode("parser", compose.InvokableLambda(parserFunc), compose.WithNodeName(name+".parser"))

	_ = graph.AddEdge(compose.START, "prompt")
	_ = graph.AddEdge("prompt", "model")
	_ = graph.AddEdge("model", "parser")
	_ = graph.AddEdge("parser", compose.END)

	compiled, err := graph.Compile(ctx, compose.WithGraphName(name))
	if err != nil {
		return nil, fmt.Errorf("compile chain: %w", err)
	}

	return &TextChain[D, T]{chain: compiled, name: name}, nil
}

// Name returns the chain name.
func (c *TextChain[D, T]) Name() string { return c.name }

// Invoke runs the chain and reports how long it took.
func (c *TextChain[D, T]) Invoke(ctx context.Context, input D, opts ...compose.Option) (T, time.Duration, error) {
	start := time.Now()
	output, err := c.chain.Invoke(ctx, input, opts...)
	return output, time.Since(start), err
}
