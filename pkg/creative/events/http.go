package events

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// HTTPWriter delivers events to a CloudEvents HTTP endpoint in binary mode.
type HTTPWriter struct {
	client cloudevents.Client
	target string
}

// NewHTTPWriter creates a writer posting to target.
func NewHTTPWriter(target string) (*HTTPWriter, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
	}
	return &HTTPWriter{client: client, target: target}, nil
}

func (w *HTTPWriter) Write(ctx context.Context, e cloudevents.Event) error {
	ctx = cloudevents.ContextWithTarget(ctx, w.target)
	if result := w.client.Send(ctx, e); cloudevents.IsUndelivered(result) || !cloudevents.IsACK(result) {
		return fmt.Errorf("failed to send event %s: %w", e.ID(), result)
	}
	return nil
}

func (w *HTTPWriter) Close(context.Context) error {
	return nil
}
