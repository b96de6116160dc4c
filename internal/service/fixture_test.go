package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/kututa/railway-booking/internal/memstore"
	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/mpesa"
)

const travelDate = "2026-03-10"

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// ────────────────────────────────────────────────
// Fakes
// ────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeGateway struct {
	pushFunc  func(ctx context.Context, r mpesa.PushRequest) (mpesa.PushResponse, error)
	queryFunc func(ctx context.Context, checkoutRequestID string) (mpesa.QueryResponse, error)
	pushes    atomic.Int64
}

func (g *fakeGateway) STKPush(ctx context.Context, r mpesa.PushRequest) (mpesa.PushResponse, error) {
	n := g.pushes.Add(1)
	if g.pushFunc != nil {
		return g.pushFunc(ctx, r)
	}
	return mpesa.PushResponse{
		MerchantRequestID: fmt.Sprintf("mr-%d", n),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", n),
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (g *fakeGateway) Query(ctx context.Context, checkoutRequestID string) (mpesa.QueryResponse, error) {
	if g.queryFunc != nil {
		return g.queryFunc(ctx, checkoutRequestID)
	}
	return mpesa.QueryResponse{}, mpesa.ErrStillProcessing
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []model.SeatChange
}

func (n *recordingNotifier) PublishSeatChange(_ context.Context, ch model.SeatChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, ch)
	return nil
}

func (n *recordingNotifier) kinds(seatID string) []model.SeatChangeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.SeatChangeKind
	for _, ch := range n.changes {
		if ch.SeatID == seatID {
			out = append(out, ch.Kind)
		}
	}
	return out
}

type recordingPublisher struct {
	mu       sync.Mutex
	bookings []model.Booking
}

func (p *recordingPublisher) PublishBookingFinalized(_ context.Context, b model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bookings = append(p.bookings, b)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bookings)
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type fixture struct {
	mem       *memstore.Store
	st        Stores
	clock     *fakeClock
	gateway   *fakeGateway
	notifier  *recordingNotifier
	publisher *recordingPublisher
	logs      *logtest.Hook
	log       logrus.FieldLogger

	locks      *SeatLockManager
	bookings   *BookingController
	reconciler *Reconciler
	sweeper    *Sweeper

	trainID    string
	classID    string
	seats      []model.Seat
	otherTrain string
	otherSeat  model.Seat
}

// newFixture seeds one 100 km train with an economy class of eight seats
// at 2.5/km (fare 250) and a second train used for mismatch checks.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memstore.New()
	mem.AddStation(model.Station{ID: "st-a", Name: "Alpha", Code: "AAA", City: "Alpha"})
	mem.AddStation(model.Station{ID: "st-b", Name: "Beta", Code: "BBB", City: "Beta"})
	mem.AddRoute("r-1", "Alpha - Beta", "st-a", "st-b", 100, 90)
	mem.AddRoute("r-2", "Beta - Alpha", "st-b", "st-a", 100, 90)
	mem.AddTrain(model.Train{ID: "train-1", Name: "Coastal", Number: "1A", DepartureTime: "08:00:00", ArrivalTime: "09:30:00", IsActive: true}, "r-1")
	mem.AddTrain(model.Train{ID: "train-2", Name: "Coastal", Number: "2A", DepartureTime: "15:00:00", ArrivalTime: "16:30:00", IsActive: true}, "r-2")
	seats := mem.AddClass(model.TrainClass{ID: "class-1", TrainID: "train-1", ClassType: "economy", TotalSeats: 8, PricePerKM: 2.5})
	other := mem.AddClass(model.TrainClass{ID: "class-2", TrainID: "train-2", ClassType: "economy", TotalSeats: 4, PricePerKM: 2.5})

	st := Stores{
		Tx:         mem,
		Holds:      mem.Holds,
		Bookings:   mem.Bookings,
		Payments:   mem.Payments,
		Passengers: mem.Passengers,
		Seats:      mem.Seats,
		Trains:     mem.Trains,
	}
	clk := &fakeClock{now: t0}
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(logger)
	f := &fixture{
		mem:        mem,
		st:         st,
		clock:      clk,
		gateway:    &fakeGateway{},
		notifier:   &recordingNotifier{},
		publisher:  &recordingPublisher{},
		logs:       hook,
		log:        log,
		trainID:    "train-1",
		classID:    "class-1",
		seats:      seats,
		otherTrain: "train-2",
		otherSeat:  other[0],
	}
	f.locks = NewSeatLockManager(st, clk, log, WithSeatNotifier(f.notifier))
	f.bookings = NewBookingController(st, clk, log, WithBookingNotifier(f.notifier), WithBookingPublisher(f.publisher))
	f.reconciler = NewReconciler(st, clk, f.gateway, f.bookings, "Test Rail", log)
	f.sweeper = NewSweeper(st, clk, f.bookings, DefaultHoldDuration, DefaultPaymentGrace, log)

	for _, user := range []string{"alice", "bob", "carol"} {
		err := mem.Passengers.Create(context.Background(), model.Passenger{
			ID: "p-" + user, UserID: user, FullName: user, IDNumber: "1234", Phone: "254712345678", CreatedAt: t0,
		})
		require.NoError(t, err, "seed passenger")
	}
	return f
}

func (f *fixture) key(i int) model.SeatKey {
	return model.SeatKey{SeatID: f.seats[i].ID, TrainID: f.trainID, TravelDate: travelDate}
}

// pendingBooking holds seat i for user and creates a pending booking.
func (f *fixture) pendingBooking(t *testing.T, i int, user string) model.Booking {
	t.Helper()
	ctx := context.Background()
	key := f.key(i)
	_, err := f.locks.Acquire(ctx, key, user)
	require.NoError(t, err, "acquire for %s", user)
	b, err := f.bookings.Create(ctx, CreateBookingInput{
		UserID: user, PassengerID: "p-" + user, SeatID: key.SeatID, TrainID: key.TrainID, TravelDate: key.TravelDate,
	})
	require.NoError(t, err, "create booking for %s", user)
	return b
}

// pay starts an STK push for b and returns the checkout request id.
func (f *fixture) pay(t *testing.T, b model.Booking) string {
	t.Helper()
	res, err := f.reconciler.Initiate(context.Background(), InitiateInput{BookingID: b.ID, UserID: b.UserID, Phone: "0712345678"})
	require.NoError(t, err, "initiate")
	return res.CheckoutRequestID
}

func callbackBody(checkoutID string, code int, receipt string) []byte {
	meta := ""
	if code == 0 {
		meta = fmt.Sprintf(`,"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":250.00},
			{"Name":"MpesaReceiptNumber","Value":"%s"},
			{"Name":"TransactionDate","Value":20260301081500},
			{"Name":"PhoneNumber","Value":254712345678}]}`, receipt)
	}
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"mr-1","CheckoutRequestID":"%s","ResultCode":%d,"ResultDesc":"desc"%s}}}`,
		checkoutID, code, meta))
}

func asConflict(t *testing.T, err error, want ConflictReason) {
	t.Helper()
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, want, ce.Reason)
}

// logged reports whether an entry with msg was logged at level.
func (f *fixture) logged(level logrus.Level, msg string) bool {
	for _, e := range f.logs.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
