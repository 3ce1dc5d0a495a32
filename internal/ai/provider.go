package ai

import (
	"context"
	"fmt"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates one reply from a conversation. Implementations must
// honor ctx cancellation; the engine calls with a hard deadline and treats
// any error as "do not speak".
type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

func NewProvider(name string) (Provider, error) {
	switch name {
	case "pollinations", "":
		return NewPollinationsProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", name)
	}
}
