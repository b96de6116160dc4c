package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kututa/railway-booking/internal/model"
)

func TestCreate_PendingWithClassFare(t *testing.T) {
	f := newFixture(t)
	b := f.pendingBooking(t, 0, "alice")

	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, int64(250), b.TotalAmount)
	assert.Equal(t, "economy", b.ClassType)
	assert.Equal(t, f.classID, b.TrainClassID)
	assert.Regexp(t, `^KR\d{8}[A-Z0-9]{4}$`, b.Reference)
	// the hold stays until payment settles
	_, ok, _ := f.locks.Current(context.Background(), f.key(0))
	assert.True(t, ok, "hold survives booking creation")
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.key(1)
	_, err := f.locks.Acquire(ctx, key, "alice")
	require.NoError(t, err)
	base := CreateBookingInput{UserID: "alice", PassengerID: "p-alice", SeatID: key.SeatID, TrainID: key.TrainID, TravelDate: key.TravelDate}

	t.Run("without hold", func(t *testing.T) {
		in := base
		in.UserID, in.PassengerID = "bob", "p-bob"
		_, err := f.bookings.Create(ctx, in)
		asConflict(t, err, ReasonHoldRequired)
	})
	t.Run("passenger of another user", func(t *testing.T) {
		in := base
		in.PassengerID = "p-bob"
		_, err := f.bookings.Create(ctx, in)
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
	t.Run("past travel date", func(t *testing.T) {
		in := base
		in.TravelDate = "2026-02-27"
		_, err := f.bookings.Create(ctx, in)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "travel_date", ve.Field)
	})
	t.Run("expired hold", func(t *testing.T) {
		f.clock.Advance(10 * time.Minute)
		_, err := f.bookings.Create(ctx, base)
		asConflict(t, err, ReasonHoldRequired)
	})
}

// At 01:30 in Nairobi it is still the previous day in UTC; that day is
// already over for travellers.
func TestCreate_TravelDateIsKenyanCalendarDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Set(time.Date(2026, 3, 9, 22, 30, 0, 0, time.UTC))

	yesterday := model.SeatKey{SeatID: f.seats[6].ID, TrainID: f.trainID, TravelDate: "2026-03-09"}
	_, err := f.locks.Acquire(ctx, yesterday, "alice")
	require.NoError(t, err)
	_, err = f.bookings.Create(ctx, CreateBookingInput{
		UserID: "alice", PassengerID: "p-alice", SeatID: yesterday.SeatID, TrainID: yesterday.TrainID, TravelDate: yesterday.TravelDate,
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "travel_date", ve.Field)

	today := f.key(7)
	_, err = f.locks.Acquire(ctx, today, "alice")
	require.NoError(t, err)
	_, err = f.bookings.Create(ctx, CreateBookingInput{
		UserID: "alice", PassengerID: "p-alice", SeatID: today.SeatID, TrainID: today.TrainID, TravelDate: today.TravelDate,
	})
	assert.NoError(t, err)
}

func TestGet_OtherUserNotFound(t *testing.T) {
	f := newFixture(t)
	b := f.pendingBooking(t, 0, "alice")
	_, err := f.bookings.Get(context.Background(), b.ID, "alice")
	require.NoError(t, err, "owner get")

	_, err = f.bookings.Get(context.Background(), b.ID, "bob")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestFinalize_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 2, "alice")

	got, changed, err := f.bookings.Finalize(ctx, b.ID, OutcomeSucceeded)
	require.NoError(t, err, "first finalize")
	assert.True(t, changed)
	assert.Equal(t, model.BookingConfirmed, got.Status)

	got, changed, err = f.bookings.Finalize(ctx, b.ID, OutcomeSucceeded)
	require.NoError(t, err, "second finalize")
	assert.False(t, changed)
	assert.Equal(t, model.BookingConfirmed, got.Status)

	_, ok, _ := f.locks.Current(ctx, f.key(2))
	assert.False(t, ok, "hold is released on finalize")
	assert.Equal(t, 1, f.publisher.count())
	kinds := f.notifier.kinds(b.Key.SeatID)
	require.NotEmpty(t, kinds)
	assert.Equal(t, model.SeatConfirmed, kinds[len(kinds)-1])
}

func TestFinalize_OppositeOutcomeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 3, "alice")

	_, _, err := f.bookings.Finalize(ctx, b.ID, OutcomeFailed)
	require.NoError(t, err)
	_, _, err = f.bookings.Finalize(ctx, b.ID, OutcomeSucceeded)
	var af *AlreadyFinalizedError
	require.ErrorAs(t, err, &af)
	assert.Equal(t, string(model.BookingCancelled), af.Status)

	stored, err := f.mem.Bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, stored.Status)
}

func TestFinalize_UnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.bookings.Finalize(context.Background(), "missing", OutcomeSucceeded)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

// twoPendingForOneSeat builds two pending bookings on seat i: alice's hold
// lapses before bob takes the seat.
func twoPendingForOneSeat(t *testing.T, f *fixture, i int) (model.Booking, model.Booking) {
	t.Helper()
	a := f.pendingBooking(t, i, "alice")
	f.clock.Advance(11 * time.Minute)
	b := f.pendingBooking(t, i, "bob")
	return a, b
}

func TestFinalize_ConcurrentConfirmationsOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := twoPendingForOneSeat(t, f, 4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, _, errs[i] = f.bookings.Finalize(ctx, id, OutcomeSucceeded)
		}(i, id)
	}
	wg.Wait()

	confirmed := 0
	for i, id := range []string{a.ID, b.ID} {
		stored, err := f.mem.Bookings.Get(ctx, id)
		require.NoError(t, err)
		switch stored.Status {
		case model.BookingConfirmed:
			confirmed++
			assert.NoError(t, errs[i], "winner")
		case model.BookingCancelled:
			asConflict(t, errs[i], ReasonSeatBooked)
		default:
			t.Errorf("booking %s left %s", id, stored.Status)
		}
	}
	assert.Equal(t, 1, confirmed, "confirmed bookings for one seat")
}

func TestNewReference_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ref, err := NewReference(t0)
		require.NoError(t, err)
		require.Len(t, ref, 14)
		seen[ref] = true
	}
	// four random characters over 36 symbols; collisions are possible but rare
	assert.GreaterOrEqual(t, len(seen), 190)
}
