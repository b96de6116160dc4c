package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/mpesa"
)

// brokenPayments fails every insert.
type brokenPayments struct {
	PaymentStore
	err error
}

func (b brokenPayments) Insert(context.Context, model.Payment) error { return b.err }

func TestInitiate_RecordsPendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 0, "alice")

	var sent mpesa.PushRequest
	f.gateway.pushFunc = func(_ context.Context, r mpesa.PushRequest) (mpesa.PushResponse, error) {
		sent = r
		return mpesa.PushResponse{MerchantRequestID: "mr-9", CheckoutRequestID: "ws_CO_9", ResponseCode: "0"}, nil
	}
	res, err := f.reconciler.Initiate(ctx, InitiateInput{BookingID: b.ID, UserID: "alice", Phone: "+254 712 345 678"})
	require.NoError(t, err)
	assert.Equal(t, "254712345678", sent.Phone)
	assert.Equal(t, int64(250), sent.Amount)
	assert.Equal(t, b.Reference, sent.AccountReference)
	assert.Equal(t, "Test Rail - "+b.Reference, sent.Description)
	assert.Equal(t, "ws_CO_9", res.CheckoutRequestID)
	assert.Equal(t, int64(250), res.Amount)

	p, err := f.mem.Payments.GetByCheckoutID(ctx, "ws_CO_9")
	require.NoError(t, err, "payment stored")
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, b.ID, p.BookingID)
	assert.Equal(t, model.PaymentMethodMpesa, p.Method)
}

func TestInitiate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 0, "alice")

	t.Run("invalid phone", func(t *testing.T) {
		_, err := f.reconciler.Initiate(ctx, InitiateInput{BookingID: b.ID, UserID: "alice", Phone: "12345"})
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})
	t.Run("someone else's booking", func(t *testing.T) {
		_, err := f.reconciler.Initiate(ctx, InitiateInput{BookingID: b.ID, UserID: "bob", Phone: "0712345678"})
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
	t.Run("gateway down", func(t *testing.T) {
		f.gateway.pushFunc = func(context.Context, mpesa.PushRequest) (mpesa.PushResponse, error) {
			return mpesa.PushResponse{}, errors.New("connection refused")
		}
		defer func() { f.gateway.pushFunc = nil }()
		_, err := f.reconciler.Initiate(ctx, InitiateInput{BookingID: b.ID, UserID: "alice", Phone: "0712345678"})
		var ue *UpstreamError
		require.ErrorAs(t, err, &ue)
		ps, err := f.mem.Payments.ListByBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, ps, "failed push records no payment")
	})
	t.Run("booking no longer pending", func(t *testing.T) {
		_, _, err := f.bookings.Finalize(ctx, b.ID, OutcomeFailed)
		require.NoError(t, err)
		_, err = f.reconciler.Initiate(ctx, InitiateInput{BookingID: b.ID, UserID: "alice", Phone: "0712345678"})
		asConflict(t, err, ReasonBookingNotPending)
	})
}

// The customer already has the prompt when the insert fails, so the
// checkout id must survive in the logs.
func TestInitiate_UnrecordedPushIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 0, "alice")

	st := f.st
	st.Payments = brokenPayments{PaymentStore: f.st.Payments, err: errors.New("deadlock")}
	r := NewReconciler(st, f.clock, f.gateway, f.bookings, "Test Rail", f.log)

	_, err := r.Initiate(ctx, InitiateInput{BookingID: b.ID, UserID: "alice", Phone: "0712345678"})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)

	var entry *logrus.Entry
	for _, e := range f.logs.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["checkout_request_id"] == "ws_CO_1" {
			entry = e
		}
	}
	require.NotNil(t, entry, "no error log carries the checkout id")
	assert.Equal(t, b.ID, entry.Data["booking_id"])
	assert.Equal(t, "mr-1", entry.Data["merchant_request_id"])
}

func TestHandleCallback_SuccessConfirmsBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 1, "alice")
	checkout := f.pay(t, b)

	out, err := f.reconciler.HandleCallback(ctx, callbackBody(checkout, 0, "QK12ABC345"))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, out.PaymentStatus)
	assert.Equal(t, model.BookingConfirmed, out.BookingStatus)
	assert.Equal(t, MsgPaymentCompleted, out.Message)
	assert.False(t, out.RefundRequired)

	p, err := f.mem.Payments.GetByCheckoutID(ctx, checkout)
	require.NoError(t, err)
	assert.Equal(t, "QK12ABC345", p.ReceiptNumber)
	assert.Equal(t, "20260301081500", p.TransactionDate)
	require.NotNil(t, p.ResultCode)
	assert.Equal(t, 0, *p.ResultCode)

	_, ok, _ := f.locks.Current(ctx, f.key(1))
	assert.False(t, ok, "hold is released once the booking is confirmed")
}

func TestHandleCallback_DuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 1, "alice")
	checkout := f.pay(t, b)
	body := callbackBody(checkout, 0, "QK12ABC345")

	first, err := f.reconciler.HandleCallback(ctx, body)
	require.NoError(t, err)
	second, err := f.reconciler.HandleCallback(ctx, body)
	require.NoError(t, err, "duplicate delivery")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.publisher.count())
}

func TestHandleCallback_FailureCodes(t *testing.T) {
	require.NotEqual(t, MsgPaymentCancelled, MsgPaymentDeclined, "cancel and decline read differently")

	tests := []struct {
		name        string
		code        int
		wantPayment model.PaymentStatus
		wantMessage string
	}{
		{"cancelled by user", 1032, model.PaymentCancelled, MsgPaymentCancelled},
		{"insufficient funds", 1, model.PaymentFailed, MsgPaymentDeclined},
		{"timeout", 1037, model.PaymentFailed, MsgPaymentDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.pendingBooking(t, 2, "alice")
			checkout := f.pay(t, b)

			out, err := f.reconciler.HandleCallback(context.Background(), callbackBody(checkout, tt.code, ""))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPayment, out.PaymentStatus)
			assert.Equal(t, tt.wantMessage, out.Message)
			assert.Equal(t, model.BookingCancelled, out.BookingStatus)
			assert.False(t, out.RefundRequired, "nothing was collected")
		})
	}
}

func TestHandleCallback_ConflictingResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 3, "alice")
	checkout := f.pay(t, b)

	_, err := f.reconciler.HandleCallback(ctx, callbackBody(checkout, 0, "QK1"))
	require.NoError(t, err)
	_, err = f.reconciler.HandleCallback(ctx, callbackBody(checkout, 1032, ""))
	var af *AlreadyFinalizedError
	require.ErrorAs(t, err, &af)

	stored, err := f.mem.Bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, stored.Status)
	assert.True(t, f.logged(logrus.WarnLevel, "conflicting result for finalized payment"))
}

func TestHandleCallback_MalformedChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.pendingBooking(t, 4, "alice")
	checkout := f.pay(t, b)

	bodies := map[string]string{
		"not json":          `{"Body":`,
		"no callback":       `{"Body":{}}`,
		"no correlation id": `{"Body":{"stkCallback":{"ResultCode":0}}}`,
		"no result code":    `{"Body":{"stkCallback":{"CheckoutRequestID":"` + checkout + `"}}}`,
		"empty object":      `{}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := f.reconciler.HandleCallback(ctx, []byte(body))
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
	p, err := f.mem.Payments.GetByCheckoutID(ctx, checkout)
	require.NoError(t, err)
	stored, err := f.mem.Bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, model.BookingPending, stored.Status)
}

func TestHandleCallback_UnknownCheckout(t *testing.T) {
	f := newFixture(t)
	_, err := f.reconciler.HandleCallback(context.Background(), callbackBody("ws_CO_unknown", 0, "QK1"))
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestHandleCallback_SeatLostRequiresRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := twoPendingForOneSeat(t, f, 5)
	payA, payB := f.pay(t, a), f.pay(t, b)

	_, err := f.reconciler.HandleCallback(ctx, callbackBody(payB, 0, "QKB"))
	require.NoError(t, err)
	out, err := f.reconciler.HandleCallback(ctx, callbackBody(payA, 0, "QKA"))
	require.NoError(t, err, "second payment")
	assert.Equal(t, model.PaymentCompleted, out.PaymentStatus)
	assert.Equal(t, model.BookingCancelled, out.BookingStatus)
	assert.Equal(t, MsgSeatUnavailable, out.Message)
	assert.True(t, out.RefundRequired)
	assert.True(t, f.logged(logrus.ErrorLevel, "payment collected for a booking that is not confirmed, refund required"))
}

func TestPoll(t *testing.T) {
	t.Run("still processing", func(t *testing.T) {
		f := newFixture(t)
		b := f.pendingBooking(t, 0, "alice")
		checkout := f.pay(t, b)

		out, err := f.reconciler.Poll(context.Background(), checkout, "alice")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentPending, out.PaymentStatus)
		assert.Equal(t, MsgPaymentPending, out.Message)
	})
	t.Run("applies final answer", func(t *testing.T) {
		f := newFixture(t)
		b := f.pendingBooking(t, 0, "alice")
		checkout := f.pay(t, b)
		f.gateway.queryFunc = func(_ context.Context, id string) (mpesa.QueryResponse, error) {
			return mpesa.QueryResponse{ResponseCode: "0", CheckoutRequestID: id, ResultCode: "1032", ResultDesc: "Request cancelled by user"}, nil
		}
		out, err := f.reconciler.Poll(context.Background(), checkout, "alice")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentCancelled, out.PaymentStatus)
		assert.Equal(t, model.BookingCancelled, out.BookingStatus)
	})
	t.Run("terminal payment skips the gateway", func(t *testing.T) {
		f := newFixture(t)
		b := f.pendingBooking(t, 0, "alice")
		checkout := f.pay(t, b)
		_, err := f.reconciler.HandleCallback(context.Background(), callbackBody(checkout, 0, "QK1"))
		require.NoError(t, err)
		f.gateway.queryFunc = func(context.Context, string) (mpesa.QueryResponse, error) {
			t.Error("gateway queried for a settled payment")
			return mpesa.QueryResponse{}, nil
		}
		out, err := f.reconciler.Poll(context.Background(), checkout, "alice")
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, out.BookingStatus)
		assert.Equal(t, "QK1", out.ReceiptNumber)
	})
	t.Run("other user", func(t *testing.T) {
		f := newFixture(t)
		b := f.pendingBooking(t, 0, "alice")
		checkout := f.pay(t, b)
		_, err := f.reconciler.Poll(context.Background(), checkout, "bob")
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
	t.Run("gateway error", func(t *testing.T) {
		f := newFixture(t)
		b := f.pendingBooking(t, 0, "alice")
		checkout := f.pay(t, b)
		f.gateway.queryFunc = func(context.Context, string) (mpesa.QueryResponse, error) {
			return mpesa.QueryResponse{}, &mpesa.APIError{Status: 500, Code: "500.003.02", Message: "System busy"}
		}
		_, err := f.reconciler.Poll(context.Background(), checkout, "alice")
		var ue *UpstreamError
		assert.ErrorAs(t, err, &ue)
	})
}
