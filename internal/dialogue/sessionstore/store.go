// Package sessionstore mirrors call sessions outside the process so a call
// survives a restart of the instance that was serving it.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"barberline/pkg/model"
)

// DefaultRetention keeps archived calls readable for a day after they end.
const DefaultRetention = 24 * time.Hour

var ErrNotFound = errors.New("sessionstore: session not found")

type Store interface {
	Get(ctx context.Context, callID string) (*model.CallSession, error)
	Save(ctx context.Context, session *model.CallSession) error
}

// Pruner is implemented by stores that cannot expire entries on their own.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}
