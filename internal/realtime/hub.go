package realtime

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/model"
)

// Hub is an in-process Feed.  It only reaches viewers connected to this
// instance and is used when Redis is not available.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[chan model.SeatChange]struct{}
	log     logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{clients: map[string]map[chan model.SeatChange]struct{}{}, log: log}
}

func (h *Hub) PublishSeatChange(_ context.Context, ch model.SeatChange) error {
	topic := Channel(ch.TrainID, ch.TravelDate)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[topic] {
		select {
		case c <- ch:
		default:
			h.log.WithField("topic", topic).Debug("seat viewer lagging, change dropped")
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, trainID, travelDate string) (<-chan model.SeatChange, func(), error) {
	topic := Channel(trainID, travelDate)
	c := make(chan model.SeatChange, subscriberBuffer)

	h.mu.Lock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[chan model.SeatChange]struct{}{}
	}
	h.clients[topic][c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients[topic], c)
			if len(h.clients[topic]) == 0 {
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			close(c)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return c, cancel, nil
}

// Subscribers returns the number of viewers of a train and date.
func (h *Hub) Subscribers(trainID, travelDate string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[Channel(trainID, travelDate)])
}
