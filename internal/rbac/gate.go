package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Errors returned by the gate. They wrap the httpx sentinels so handlers can
// map them without importing this package.
var (
	ErrUnauthenticated = fmt.Errorf("rbac: %w", httpx.ErrUnauthenticated)
	ErrForbidden       = fmt.Errorf("rbac: %w", httpx.ErrForbidden)
)

// AccessRecorder persists a record of a granted access. Implementations must
// not block the caller; the gate ignores anything they do after returning.
type AccessRecorder interface {
	Record(ctx context.Context, actorID string, capability string, resourceID *string)
}

// Gate checks principals against the capability registry and records every
// granted access.
type Gate struct {
	recorder AccessRecorder
	logger   *slog.Logger
}

// NewGate constructs a Gate. recorder may be nil, in which case accesses are
// not recorded.
func NewGate(recorder AccessRecorder, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{recorder: recorder, logger: logger}
}

// Authorize returns nil when principal holds capability. A nil principal
// yields ErrUnauthenticated and a missing capability yields ErrForbidden.
// The outcome never depends on the access record being written.
func (g *Gate) Authorize(ctx context.Context, principal *Principal, capability Capability, resourceID *string) error {
	if principal == nil {
		return ErrUnauthenticated
	}
	if !principal.Capabilities.Has(capability) {
		return fmt.Errorf("%w: missing capability %s", ErrForbidden, capability)
	}
	g.record(ctx, principal.ID, capability, resourceID)
	return nil
}

func (g *Gate) record(ctx context.Context, actorID string, capability Capability, resourceID *string) {
	if g == nil || g.recorder == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Warn("rbac access record panicked",
				slog.String("actor_id", actorID),
				slog.String("capability", string(capability)),
				slog.Any("panic", rec))
		}
	}()
	g.recorder.Record(ctx, actorID, string(capability), resourceID)
}
