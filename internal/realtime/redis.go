package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/model"
)

// RedisFeed distributes seat changes through Redis pub/sub so every
// instance of the service reaches its own viewers.
type RedisFeed struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

func NewRedisFeed(rdb *redis.Client, log logrus.FieldLogger) *RedisFeed {
	return &RedisFeed{rdb: rdb, log: log}
}

func (f *RedisFeed) PublishSeatChange(ctx context.Context, ch model.SeatChange) error {
	body, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, Channel(ch.TrainID, ch.TravelDate), body).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, trainID, travelDate string) (<-chan model.SeatChange, func(), error) {
	topic := Channel(trainID, travelDate)
	sub := f.rdb.Subscribe(ctx, topic)
	// wait for the subscription confirmation so no change is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan model.SeatChange, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ch model.SeatChange
				if err := json.Unmarshal([]byte(m.Payload), &ch); err != nil {
					f.log.WithError(err).WithField("topic", topic).Warn("bad seat change payload")
					continue
				}
				select {
				case out <- ch:
				default:
					f.log.WithField("topic", topic).Debug("seat viewer lagging, change dropped")
				}
			}
		}
	}()
	return out, cancel, nil
}
