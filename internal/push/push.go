package push

import (
	"context"
)

// Emitter delivers a live payload to one recipient. Delivery is best-effort;
// a recipient with no active connection is an error the orchestrator may
// retry.
type Emitter interface {
	Emit(ctx context.Context, recipientID string, payload any) error
}
