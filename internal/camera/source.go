package camera

import (
	"context"
	"errors"
)

// ErrNoFrame signals that the source has no frame available right now. The
// engine treats it as a normal steady state and simply skips the tick.
var ErrNoFrame = errors.New("no frame available")

// Source is an opaque supplier of visual frames. NextFrame returns the most
// recent JPEG frame, consuming it so the same frame is not processed twice.
type Source interface {
	NextFrame(ctx context.Context) ([]byte, error)
	Stop()
}

// NullSource never produces a frame. It stands in when no camera is
// configured so the engine loop can still run and report its status.
type NullSource struct{}

func (NullSource) NextFrame(ctx context.Context) ([]byte, error) { return nil, ErrNoFrame }
func (NullSource) Stop()                                         {}
