package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/mpesa"
	"github.com/kututa/railway-booking/internal/repository"
)

// Messages shown to the customer for each payment outcome.
const (
	MsgSeatUnavailable  = "seat no longer available"
	MsgPaymentDeclined  = "payment declined"
	MsgPaymentCancelled = "payment cancelled"
	MsgPaymentPending   = "payment still pending, please wait"
	MsgPaymentCompleted = "payment completed"
)

// PaymentGateway is the part of the M-Pesa client used here.
type PaymentGateway interface {
	STKPush(ctx context.Context, r mpesa.PushRequest) (mpesa.PushResponse, error)
	Query(ctx context.Context, checkoutRequestID string) (mpesa.QueryResponse, error)
}

// Reconciler starts M-Pesa payments for pending bookings and applies the
// gateway's answers, whether they arrive by callback or by polling.
// Applying the same answer twice has no further effect.
type Reconciler struct {
	st       Stores
	clock    Clock
	gateway  PaymentGateway
	bookings *BookingController
	appName  string
	log      logrus.FieldLogger
}

func NewReconciler(st Stores, clk Clock, gw PaymentGateway, bookings *BookingController, appName string, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{st: st, clock: clk, gateway: gw, bookings: bookings, appName: appName, log: log}
}

// InitiateInput asks for an STK push for a booking.
type InitiateInput struct {
	BookingID string
	UserID    string
	Phone     string
}

// InitiateResult is returned to the client after the prompt was sent.
type InitiateResult struct {
	PaymentID         string `json:"payment_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CustomerMessage   string `json:"customer_message"`
	Amount            int64  `json:"amount"`
}

// Initiate sends an STK push for the fare of a pending booking owned by the
// caller and records a pending payment under the returned checkout id.
func (r *Reconciler) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	b, err := r.bookings.Get(ctx, in.BookingID, in.UserID)
	if err != nil {
		return InitiateResult{}, err
	}
	if b.Status != model.BookingPending {
		return InitiateResult{}, &ConflictError{Reason: ReasonBookingNotPending}
	}
	phone, err := mpesa.NormalizePhone(in.Phone)
	if err != nil {
		return InitiateResult{}, &ValidationError{Field: "phone_number", Message: err.Error()}
	}

	resp, err := r.gateway.STKPush(ctx, mpesa.PushRequest{
		Phone:            phone,
		Amount:           b.TotalAmount,
		AccountReference: b.Reference,
		Description:      r.appName + " - " + b.Reference,
	})
	if err != nil {
		r.log.WithError(err).WithField("booking_id", b.ID).Error("stk push failed")
		return InitiateResult{}, &UpstreamError{Op: "stk push", Err: err}
	}

	now := r.clock.Now()
	p := model.Payment{
		ID:                uuid.NewString(),
		BookingID:         b.ID,
		Amount:            b.TotalAmount,
		Method:            model.PaymentMethodMpesa,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		PhoneNumber:       phone,
		Status:            model.PaymentPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := r.st.Payments.Insert(ctx, p); err != nil {
		// the prompt is already on the customer's phone
		r.log.WithError(err).WithFields(logrus.Fields{
			"booking_id": b.ID, "checkout_request_id": resp.CheckoutRequestID,
			"merchant_request_id": resp.MerchantRequestID, "amount": b.TotalAmount, "phone": phone,
		}).Error("stk push sent but payment not recorded, reconcile by hand")
		return InitiateResult{}, upstream("record payment", err)
	}

	r.log.WithFields(logrus.Fields{
		"booking_id": b.ID, "payment_id": p.ID, "checkout_request_id": p.CheckoutRequestID, "amount": p.Amount,
	}).Info("stk push sent")
	return InitiateResult{
		PaymentID:         p.ID,
		CheckoutRequestID: p.CheckoutRequestID,
		MerchantRequestID: p.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
		Amount:            p.Amount,
	}, nil
}

// PaymentOutcome is the state of a payment and its booking as reported
// to the customer.
type PaymentOutcome struct {
	CheckoutRequestID string              `json:"checkout_request_id"`
	PaymentStatus     model.PaymentStatus `json:"payment_status"`
	ResultCode        *int                `json:"result_code,omitempty"`
	ReceiptNumber     string              `json:"receipt_number,omitempty"`
	BookingID         string              `json:"booking_id"`
	BookingReference  string              `json:"booking_reference"`
	BookingStatus     model.BookingStatus `json:"booking_status"`
	Message           string              `json:"message"`
	RefundRequired    bool                `json:"refund_required,omitempty"`
}

func outcomeOf(p model.Payment, b model.Booking) PaymentOutcome {
	o := PaymentOutcome{
		CheckoutRequestID: p.CheckoutRequestID,
		PaymentStatus:     p.Status,
		ResultCode:        p.ResultCode,
		ReceiptNumber:     p.ReceiptNumber,
		BookingID:         b.ID,
		BookingReference:  b.Reference,
		BookingStatus:     b.Status,
	}
	switch p.Status {
	case model.PaymentPending:
		o.Message = MsgPaymentPending
	case model.PaymentCompleted:
		if b.Status == model.BookingConfirmed {
			o.Message = MsgPaymentCompleted
		} else {
			o.Message = MsgSeatUnavailable
			o.RefundRequired = true
		}
	case model.PaymentCancelled:
		o.Message = MsgPaymentCancelled
	default:
		o.Message = MsgPaymentDeclined
	}
	return o
}

// statusFor maps a gateway result code to the payment status and the
// booking outcome.
func statusFor(code int) (model.PaymentStatus, Outcome) {
	switch code {
	case mpesa.ResultSuccess:
		return model.PaymentCompleted, OutcomeSucceeded
	case mpesa.ResultCancelledByUser:
		return model.PaymentCancelled, OutcomeFailed
	}
	return model.PaymentFailed, OutcomeFailed
}

// HandleCallback parses a gateway callback and applies it.  Malformed
// bodies yield a ValidationError and change nothing.
func (r *Reconciler) HandleCallback(ctx context.Context, raw []byte) (PaymentOutcome, error) {
	res, err := mpesa.ParseCallback(raw)
	if err != nil {
		r.log.WithError(err).Warn("rejected mpesa callback")
		return PaymentOutcome{}, &ValidationError{Field: "body", Message: err.Error()}
	}
	r.log.WithFields(logrus.Fields{
		"checkout_request_id": res.CheckoutRequestID, "result_code": res.ResultCode, "result_desc": res.ResultDesc,
	}).Info("mpesa callback received")
	return r.Apply(ctx, res)
}

// Poll reports the state of a payment of the caller, asking the gateway
// when no final answer has been recorded yet.
func (r *Reconciler) Poll(ctx context.Context, checkoutRequestID, userID string) (PaymentOutcome, error) {
	p, err := r.st.Payments.GetByCheckoutID(ctx, checkoutRequestID)
	if errors.Is(err, repository.ErrNotFound) {
		return PaymentOutcome{}, &NotFoundError{Resource: "payment", ID: checkoutRequestID}
	}
	if err != nil {
		return PaymentOutcome{}, upstream("get payment", err)
	}
	b, err := r.bookings.Get(ctx, p.BookingID, userID)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return PaymentOutcome{}, &NotFoundError{Resource: "payment", ID: checkoutRequestID}
	}
	if err != nil {
		return PaymentOutcome{}, err
	}
	if p.Status.Terminal() {
		return outcomeOf(p, b), nil
	}

	q, err := r.gateway.Query(ctx, checkoutRequestID)
	if errors.Is(err, mpesa.ErrStillProcessing) {
		return outcomeOf(p, b), nil
	}
	if err != nil {
		return PaymentOutcome{}, &UpstreamError{Op: "stk query", Err: err}
	}
	if q.ResponseCode != "0" || q.ResultCode == "" {
		return outcomeOf(p, b), nil
	}
	res, err := mpesa.ResultFromQuery(q)
	if err != nil {
		return PaymentOutcome{}, &UpstreamError{Op: "stk query", Err: err}
	}
	res.CheckoutRequestID = checkoutRequestID
	return r.Apply(ctx, res)
}

// Apply records a gateway result on its payment and finalizes the
// booking in the same transaction.  A result equal to the one already
// recorded is a no-op; a conflicting one yields AlreadyFinalizedError.
func (r *Reconciler) Apply(ctx context.Context, res mpesa.Result) (PaymentOutcome, error) {
	status, outcome := statusFor(res.ResultCode)
	now := r.clock.Now()
	entry := r.log.WithFields(logrus.Fields{
		"checkout_request_id": res.CheckoutRequestID, "result_code": res.ResultCode,
	})

	var (
		out     PaymentOutcome
		fin     finalization
		applied bool
	)
	err := r.st.Tx.WithTx(ctx, func(ctx context.Context) error {
		fin, applied = finalization{}, false
		p, err := r.st.Payments.GetByCheckoutIDForUpdate(ctx, res.CheckoutRequestID)
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Resource: "payment", ID: res.CheckoutRequestID}
		}
		if err != nil {
			return err
		}
		if p.Status.Terminal() {
			if p.Status != status {
				return &AlreadyFinalizedError{BookingID: p.BookingID, Status: string(p.Status)}
			}
			b, err := r.st.Bookings.Get(ctx, p.BookingID)
			if err != nil {
				return err
			}
			out = outcomeOf(p, b)
			return nil
		}

		code := res.ResultCode
		p.Status = status
		p.ResultCode = &code
		p.ResultDesc = res.ResultDesc
		p.ReceiptNumber = res.ReceiptNumber
		p.TransactionDate = res.TransactionDate
		p.UpdatedAt = now
		if err := r.st.Payments.Complete(ctx, p); err != nil {
			return err
		}
		applied = true

		fin, err = r.bookings.finalizeInTx(ctx, p.BookingID, outcome, now)
		var af *AlreadyFinalizedError
		if errors.As(err, &af) {
			// the payment result is still recorded; the booking keeps its state
			b, gerr := r.st.Bookings.Get(ctx, p.BookingID)
			if gerr != nil {
				return gerr
			}
			out = outcomeOf(p, b)
			return nil
		}
		if err != nil {
			return err
		}
		out = outcomeOf(p, fin.booking)
		return nil
	})
	if err != nil {
		var af *AlreadyFinalizedError
		if errors.As(err, &af) {
			e := entry.WithFields(logrus.Fields{"booking_id": af.BookingID, "status": af.Status})
			if status == model.PaymentCompleted {
				e.Error("payment collected after the payment was closed, refund required")
			} else {
				e.Warn("conflicting result for finalized payment")
			}
		}
		return PaymentOutcome{}, upstream("apply payment result", err)
	}

	if fin.changed {
		r.bookings.afterFinalize(ctx, fin.booking)
	}
	if applied && out.RefundRequired {
		entry.WithFields(logrus.Fields{
			"booking_id": out.BookingID, "receipt": out.ReceiptNumber,
		}).Error("payment collected for a booking that is not confirmed, refund required")
	}
	entry.WithFields(logrus.Fields{
		"payment_status": out.PaymentStatus, "booking_status": out.BookingStatus,
	}).Info("payment result applied")
	return out, nil
}
