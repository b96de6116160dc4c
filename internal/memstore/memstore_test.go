package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/repository"
)

var key = model.SeatKey{SeatID: "s-1", TrainID: "t-1", TravelDate: "2026-03-10"}

func hold(holder string, expires time.Time) model.SeatHold {
	return model.SeatHold{ID: "h-" + holder, Key: key, HolderID: holder, HoldToken: "tok-" + holder, ExpiresAt: expires}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.Holds.Upsert(ctx, hold("alice", time.Now().Add(time.Minute))); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = s.Holds.Get(ctx, key)
	assert.ErrorIs(t, err, repository.ErrNotFound, "hold survived rollback")
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		return s.WithTx(ctx, func(ctx context.Context) error {
			_, err := s.Holds.Upsert(ctx, hold("alice", time.Now().Add(time.Minute)))
			return err
		})
	})
	require.NoError(t, err)
	got, err := s.Holds.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.HolderID)
}

func TestHoldUpsert_KeepsOtherHolder(t *testing.T) {
	s := New()
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	_, err := s.Holds.Upsert(ctx, hold("alice", exp))
	require.NoError(t, err)
	got, err := s.Holds.Upsert(ctx, hold("bob", exp.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.HolderID, "bob overwrote the hold")
	assert.True(t, got.ExpiresAt.Equal(exp), "bob moved the expiry: %s", got.ExpiresAt)

	got, err = s.Holds.Upsert(ctx, hold("alice", exp.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(exp.Add(time.Minute)), "alice could not extend: %s", got.ExpiresAt)

	deleted, err := s.Holds.Delete(ctx, key, "bob")
	require.NoError(t, err)
	assert.False(t, deleted, "bob released alice's hold")
}

func TestSeedDemo_Search(t *testing.T) {
	s := New()
	s.SeedDemo()
	ctx := context.Background()

	trains, err := s.Trains.Search(ctx, "nrb", "MSA")
	require.NoError(t, err)
	require.Len(t, trains, 1)
	assert.Equal(t, "2A", trains[0].Number)
	assert.EqualValues(t, 472, trains[0].Route.DistanceKM)

	classes, err := s.Trains.ListClasses(ctx, trains[0].ID)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "economy", classes[0].ClassType)
	seats, err := s.Seats.ListByClass(ctx, classes[0].ID)
	require.NoError(t, err)
	assert.Len(t, seats, 40)
}
