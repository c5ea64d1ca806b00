/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com

Package core provides callback handlers for observability of graph runs.
*/
package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"

	"github.com/josephgoksu/ytflow/internal/utils"
)

// StageEvent is emitted when a node starts, ends or fails.
type StageEvent struct {
	Name      string
	Component string
	Phase     string // "start", "end", "error"
	Duration  time.Duration
	Err       error
	Meta      map[string]any
}

// CallbackHandler turns Eino callbacks into slog records and StageEvents.
type CallbackHandler struct {
	log        *slog.Logger
	mu         sync.Mutex
	startTimes map[string]time.Time
	onEvent    func(StageEvent)
}

// NewCallbackHandler creates a handler logging through log (slog.Default when nil).
func NewCallbackHandler(log *slog.Logger) *CallbackHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CallbackHandler{
		log:        log,
		startTimes: make(map[string]time.Time),
	}
}

// OnEvent sets a listener for stage events, typically a spinner or progress line.
func (h *CallbackHandler) OnEvent(fn func(StageEvent)) *CallbackHandler {
	h.onEvent = fn
	return h
}

func (h *CallbackHandler) emit(ev StageEvent) {
	if h.onEvent != nil {
		h.onEvent(ev)
	}
}

func (h *CallbackHandler) elapsed(name string) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	start, ok := h.startTimes[name]
	if !ok {
		return 0
	}
	delete(h.startTimes, name)
	return time.Since(start)
}

// Build creates an Eino-compatible callback handler.
func (h *CallbackHandler) Build() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			h.mu.Lock()
			h.startTimes[info.Name] = time.Now()
			h.mu.Unlock()

			meta := map[string]any{}
			switch info.Component {
			case components.ComponentOfChatModel:
				if in := model.ConvCallbackInput(input); in != nil {
					meta["messages"] = len(in.Messages)
					meta["tools"] = len(in.Tools)
				}
			case components.ComponentOfTool:
				if in := tool.ConvCallbackInput(input); in != nil {
					meta["args"] = utils.Truncate(in.ArgumentsInJSON, 120)
				}
			}

			h.log.Debug("node start", "node", info.Name, "component", string(info.Component), "meta", meta)
			h.emit(StageEvent{Name: info.Name, Component: string(info.Component), Phase: "start", Meta: meta})
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			d := h.elapsed(info.Name)
			meta := map[string]any{}
			if info.Component == components.ComponentOfChatModel {
				if out := model.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
					meta["total_tokens"] = out.TokenUsage.TotalTokens
				}
			}

			h.log.Debug("node end", "node", info.Name, "duration", d, "meta", meta)
			h.emit(StageEvent{Name: info.Name, Component: string(info.Component), Phase: "end", Duration: d, Meta: meta})
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			d := h.elapsed(info.Name)
			h.log.Warn("node failed", "node", info.Name, "duration", d, "error", err)
			h.emit(StageEvent{Name: info.Name, Component: string(info.Component), Phase: "error", Duration: d, Err: err})
			return ctx
		}).
		Build()
}
