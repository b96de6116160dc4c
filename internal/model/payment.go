package model

import "time"

// PaymentStatus is the state of one payment attempt.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "pending"
    PaymentCompleted PaymentStatus = "completed"
    PaymentFailed    PaymentStatus = "failed"
    PaymentCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether the payment has reached its final state.
func (s PaymentStatus) Terminal() bool {
    return s != PaymentPending
}

// Payment is one attempt to collect the fare of a booking through the
// mobile money gateway.  CheckoutRequestID is the gateway correlation id
// used to match callbacks and status queries back to the attempt.
type Payment struct {
    ID                string        `json:"id"`                  // payments.id
    BookingID         string        `json:"booking_id"`          // payments.booking_id
    Amount            int64         `json:"amount"`              // payments.amount
    Method            string        `json:"payment_method"`      // payments.payment_method
    CheckoutRequestID string        `json:"checkout_request_id"` // payments.checkout_request_id
    MerchantRequestID string        `json:"merchant_request_id,omitempty"`
    PhoneNumber       string        `json:"phone_number"`
    Status            PaymentStatus `json:"status"`
    ResultCode        *int          `json:"result_code,omitempty"`
    ResultDesc        string        `json:"result_desc,omitempty"`
    ReceiptNumber     string        `json:"receipt_number,omitempty"`
    TransactionDate   string        `json:"transaction_date,omitempty"`
    CreatedAt         time.Time     `json:"created_at"`
    UpdatedAt         time.Time     `json:"updated_at"`
}

// PaymentMethodMpesa is the only payment method collected by this service.
const PaymentMethodMpesa = "mpesa"
