package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout marks a gateway call that ran past its deadline. Callers may retry.
var ErrTimeout = errors.New("model call timed out")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Gateway is the uniform text-completion and embedding surface over a model provider.
type Gateway interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// withDeadline applies the gateway timeout unless the caller already set one.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// classify turns a context deadline into ErrTimeout so handlers can report it
// as retryable.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
