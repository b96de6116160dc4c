// Package realtime fans seat changes out to seat map viewers.  Viewers
// subscribe per train and travel date; publishers do not block on slow
// viewers.
package realtime

import (
	"context"

	"github.com/kututa/railway-booking/internal/model"
)

// Feed publishes and subscribes to seat changes.
type Feed interface {
	PublishSeatChange(ctx context.Context, ch model.SeatChange) error
	// Subscribe returns a channel of changes for one train and date.  The
	// channel is closed when ctx ends or cancel is called.
	Subscribe(ctx context.Context, trainID, travelDate string) (<-chan model.SeatChange, func(), error)
}

// Channel is the pub/sub topic of a train and travel date.
func Channel(trainID, travelDate string) string {
	return "seats:" + trainID + ":" + travelDate
}

// subscriberBuffer bounds how many changes a slow viewer may lag behind
// before changes are dropped for it.
const subscriberBuffer = 32
