package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kututa/railway-booking/internal/model"
)

func TestAcquire_ConcurrentHoldersSingleWinner(t *testing.T) {
	f := newFixture(t)
	key := f.key(0)

	const holders = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(holder string) {
			defer wg.Done()
			_, err := f.locks.Acquire(context.Background(), key, holder)
			mu.Lock()
			defer mu.Unlock()
			var ce *ConflictError
			switch {
			case err == nil:
				winners = append(winners, holder)
			case errors.As(err, &ce) && ce.Reason == ReasonSeatHeld:
				conflicts++
			default:
				t.Errorf("unexpected error for %s: %v", holder, err)
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, holders-1, conflicts)
	h, ok, err := f.locks.Current(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "expected an active hold")
	assert.Equal(t, winners[0], h.HolderID)
}

// A holds at t=0, B is rejected at t=60s and succeeds at t=700s after A's
// ten minute hold lapsed.
func TestAcquire_HoldTimeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.key(1)

	hA, err := f.locks.Acquire(ctx, key, "alice")
	require.NoError(t, err, "t=0 acquire")
	assert.True(t, hA.ExpiresAt.Equal(t0.Add(10*time.Minute)), "expires_at = %s", hA.ExpiresAt)

	f.clock.Advance(60 * time.Second)
	_, err = f.locks.Acquire(ctx, key, "bob")
	asConflict(t, err, ReasonSeatHeld)

	f.clock.Advance(640 * time.Second)
	assert.False(t, f.locks.IsActive(hA), "alice's hold must not be active at t=700")
	hB, err := f.locks.Acquire(ctx, key, "bob")
	require.NoError(t, err, "t=700 acquire")
	assert.Equal(t, "bob", hB.HolderID)
	assert.NotEqual(t, hA.HoldToken, hB.HoldToken, "a new hold gets a new token")
}

func TestAcquire_SameHolderExtends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.key(2)

	first, err := f.locks.Acquire(ctx, key, "alice")
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	second, err := f.locks.Acquire(ctx, key, "alice")
	require.NoError(t, err, "re-acquire")
	assert.Equal(t, first.ID, second.ID, "re-acquire refreshes the same hold")
	assert.True(t, second.ExpiresAt.Equal(t0.Add(15*time.Minute)), "expires_at = %s", second.ExpiresAt)
}

func TestAcquire_BookedSeatRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 3, "alice")
	_, _, err := f.bookings.Finalize(ctx, b.ID, OutcomeSucceeded)
	require.NoError(t, err)

	_, err = f.locks.Acquire(ctx, f.key(3), "bob")
	asConflict(t, err, ReasonSeatBooked)
	_, err = f.locks.Acquire(ctx, f.key(3), "alice")
	asConflict(t, err, ReasonSeatBooked)
}

func TestAcquire_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		key          model.SeatKey
		holder       string
		wantNotFound bool
	}{
		{"bad date", model.SeatKey{SeatID: f.seats[0].ID, TrainID: f.trainID, TravelDate: "10-03-2026"}, "alice", false},
		{"missing seat", model.SeatKey{TrainID: f.trainID, TravelDate: travelDate}, "alice", false},
		{"missing holder", f.key(0), "", false},
		{"unknown seat", model.SeatKey{SeatID: "nope", TrainID: f.trainID, TravelDate: travelDate}, "alice", true},
		{"seat of another train", model.SeatKey{SeatID: f.otherSeat.ID, TrainID: f.trainID, TravelDate: travelDate}, "alice", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.locks.Acquire(ctx, tt.key, tt.holder)
			if tt.wantNotFound {
				var nf *NotFoundError
				assert.ErrorAs(t, err, &nf)
				return
			}
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestRelease_OnlyHolderReleases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.key(4)

	_, err := f.locks.Acquire(ctx, key, "alice")
	require.NoError(t, err)
	require.NoError(t, f.locks.Release(ctx, key, "bob"), "release by non holder")
	_, ok, _ := f.locks.Current(ctx, key)
	assert.True(t, ok, "hold survives a release by someone else")

	require.NoError(t, f.locks.Release(ctx, key, "alice"))
	_, ok, _ = f.locks.Current(ctx, key)
	assert.False(t, ok, "hold is gone after release")
	assert.NoError(t, f.locks.Release(ctx, key, "alice"), "second release is a no-op")

	assert.Equal(t, []model.SeatChangeKind{model.SeatHeld, model.SeatReleased}, f.notifier.kinds(key.SeatID))
}

func TestCurrent_ExpiredHoldNotActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.key(5)

	_, err := f.locks.Acquire(ctx, key, "alice")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, ok, err := f.locks.Current(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "hold expiring exactly now is not active")
}

func TestSeatMap_Statuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked := f.pendingBooking(t, 0, "carol")
	_, _, err := f.bookings.Finalize(ctx, booked.ID, OutcomeSucceeded)
	require.NoError(t, err)
	// a stray hold on a sold seat does not hide the sale
	_, err = f.mem.Holds.Upsert(ctx, model.SeatHold{
		ID: "stray", Key: f.key(0), HolderID: "bob", HoldToken: "x", ExpiresAt: t0.Add(time.Hour), CreatedAt: t0,
	})
	require.NoError(t, err)
	_, err = f.locks.Acquire(ctx, f.key(1), "alice")
	require.NoError(t, err)
	_, err = f.locks.Acquire(ctx, f.key(2), "bob")
	require.NoError(t, err)

	seats, err := f.locks.SeatMap(ctx, f.trainID, f.classID, travelDate, "alice")
	require.NoError(t, err)
	require.Len(t, seats, len(f.seats))
	status := map[string]model.SeatStatus{}
	for _, s := range seats {
		status[s.ID] = s.Status
	}
	want := map[int]model.SeatStatus{
		0: model.SeatBooked,
		1: model.SeatSelected,
		2: model.SeatLocked,
		3: model.SeatAvailable,
	}
	for i, w := range want {
		assert.Equal(t, w, status[f.seats[i].ID], "seat %s", f.seats[i].SeatNumber)
	}

	f.clock.Advance(11 * time.Minute)
	seats, err = f.locks.SeatMap(ctx, f.trainID, f.classID, travelDate, "alice")
	require.NoError(t, err)
	for _, s := range seats {
		if s.ID == f.seats[1].ID {
			assert.Equal(t, model.SeatAvailable, s.Status, "expired hold still shown")
		}
	}
}

func TestSeatMap_ClassOfOtherTrain(t *testing.T) {
	f := newFixture(t)
	_, err := f.locks.SeatMap(context.Background(), f.trainID, "class-2", travelDate, "alice")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
