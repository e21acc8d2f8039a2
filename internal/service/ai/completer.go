package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/fake-audience/backend/internal/config"
)

var (
	// ErrEmptyCompletion is returned when the model answers with no text.
	ErrEmptyCompletion = errors.New("completion returned empty content")
	ErrOffline         = errors.New("completion backend not configured")
)

// Completer 把一段系统提示与用户提示映射为一条简短回复。
type Completer interface {
	Complete(ctx context.Context, system, query string) (string, error)
}

// ChainCompleter runs a compiled eino chain: chat template -> chat model.
type ChainCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter builds the Ark chat model from cfg and wraps it in a ChainCompleter.
func NewArkCompleter(ctx context.Context, cfg config.AIConfig) (*ChainCompleter, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewChainCompleter(ctx, chatModel)
}

// NewChainCompleter compiles the prompt chain around any eino chat model.
func NewChainCompleter(ctx context.Context, chatModel model.BaseChatModel) (*ChainCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}
	return &ChainCompleter{chain: runnable}, nil
}

// Complete invokes the chain once.
func (c *ChainCompleter) Complete(ctx context.Context, system, query string) (string, error) {
	msg, err := c.chain.Invoke(ctx, map[string]any{
		"system": system,
		"query":  query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run completion chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return msg.Content, nil
}
