package dispatcher

import (
	"context"

	"github.com/garyjia/ohsms/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// AllEvents is the pseudo type used to register a handler for every event
const AllEvents event.Type = "*"

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
