package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Result codes with a dedicated meaning.
const (
	ResultSuccess         = 0
	ResultCancelledByUser = 1032
)

// CallbackEnvelope is the JSON document Daraja posts to the callback URL.
type CallbackEnvelope struct {
	Body *struct {
		STKCallback *STKCallback `json:"stkCallback" validate:"required"`
	} `json:"Body" validate:"required"`
}

// STKCallback carries the outcome of one STK push.
type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID" validate:"required"`
	ResultCode        *int   `json:"ResultCode" validate:"required"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []MetadataItem `json:"Item" validate:"dive"`
	} `json:"CallbackMetadata"`
}

// MetadataItem is one Name/Value pair of the callback metadata.  Value is
// a JSON number or string depending on the item.
type MetadataItem struct {
	Name  string      `json:"Name" validate:"required"`
	Value json.Number `json:"Value"`
}

// UnmarshalJSON accepts both numbers and strings for Value.
func (m *MetadataItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name  string          `json:"Name"`
		Value json.RawMessage `json:"Value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.Name = raw.Name
	v := bytes.TrimSpace(raw.Value)
	switch {
	case len(v) == 0 || string(v) == "null":
		m.Value = ""
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		m.Value = json.Number(s)
	default:
		m.Value = json.Number(v)
	}
	return nil
}

// Result is a gateway outcome, from a callback or a status query.
type Result struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            int64
	TransactionDate   string // yyyyMMddHHmmss
	PhoneNumber       string
}

var validate = validator.New()

// ParseCallback decodes and validates a callback body.
func ParseCallback(raw []byte) (Result, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Result{}, fmt.Errorf("decode callback: %w", err)
	}
	if err := validate.Struct(env); err != nil {
		return Result{}, fmt.Errorf("invalid callback: %w", err)
	}
	cb := env.Body.STKCallback

	res := Result{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        *cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if cb.CallbackMetadata != nil {
		for _, it := range cb.CallbackMetadata.Item {
			switch it.Name {
			case "MpesaReceiptNumber":
				res.ReceiptNumber = it.Value.String()
			case "Amount":
				if f, err := it.Value.Float64(); err == nil {
					res.Amount = int64(f)
				}
			case "TransactionDate":
				res.TransactionDate = it.Value.String()
			case "PhoneNumber":
				res.PhoneNumber = it.Value.String()
			}
		}
	}
	return res, nil
}

// ResultFromQuery converts a final status query answer into a Result.
func ResultFromQuery(q QueryResponse) (Result, error) {
	code, err := strconv.Atoi(q.ResultCode)
	if err != nil {
		return Result{}, fmt.Errorf("mpesa: result code %q: %w", q.ResultCode, err)
	}
	return Result{
		MerchantRequestID: q.MerchantRequestID,
		CheckoutRequestID: q.CheckoutRequestID,
		ResultCode:        code,
		ResultDesc:        q.ResultDesc,
	}, nil
}
