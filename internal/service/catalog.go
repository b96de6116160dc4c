package service

import (
	"context"
	"errors"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/repository"
)

// Catalog answers read-only questions about trains and classes.
type Catalog struct {
	st Stores
}

func NewCatalog(st Stores) *Catalog { return &Catalog{st: st} }

// Search lists active trains between two station codes.  Either code may
// be empty.
func (c *Catalog) Search(ctx context.Context, from, to string) ([]model.Train, error) {
	out, err := c.st.Trains.Search(ctx, from, to)
	if err != nil {
		return nil, upstream("search trains", err)
	}
	return out, nil
}

// ClassFare is a train class with the fare of one seat.
type ClassFare struct {
	model.TrainClass
	Fare int64 `json:"fare"`
}

// Classes lists the classes of a train with their fares.
func (c *Catalog) Classes(ctx context.Context, trainID string) ([]ClassFare, error) {
	if _, err := c.st.Trains.Get(ctx, trainID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "train", ID: trainID}
		}
		return nil, upstream("get train", err)
	}
	classes, err := c.st.Trains.ListClasses(ctx, trainID)
	if err != nil {
		return nil, upstream("list classes", err)
	}
	out := make([]ClassFare, 0, len(classes))
	for _, cl := range classes {
		out = append(out, ClassFare{TrainClass: cl, Fare: cl.Fare()})
	}
	return out, nil
}
