package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": "254708374149"}
        ]
      }
    }
  }
}`

const cancelledCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user"
    }
  }
}`

func TestParseCallback_Success(t *testing.T) {
	res, err := ParseCallback([]byte(successCallback))
	require.NoError(t, err, "parse")
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.Equal(t, ResultSuccess, res.ResultCode)
	assert.Equal(t, "NLJ7RT61SV", res.ReceiptNumber)
	assert.EqualValues(t, 1, res.Amount)
	assert.Equal(t, "20191219102115", res.TransactionDate)
	assert.Equal(t, "254708374149", res.PhoneNumber)
}

func TestParseCallback_Cancelled(t *testing.T) {
	res, err := ParseCallback([]byte(cancelledCallback))
	require.NoError(t, err, "parse")
	assert.Equal(t, ResultCancelledByUser, res.ResultCode)
	assert.Empty(t, res.ReceiptNumber)
}

func TestParseCallback_Invalid(t *testing.T) {
	bodies := []string{
		``,
		`[]`,
		`{}`,
		`{"Body":null}`,
		`{"Body":{"stkCallback":{"ResultCode":0}}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":"zero"}}}`,
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,"CallbackMetadata":{"Item":[{"Value":1}]}}}}`,
	}
	for _, body := range bodies {
		_, err := ParseCallback([]byte(body))
		assert.Error(t, err, "body %s", body)
	}
}

func TestResultFromQuery(t *testing.T) {
	res, err := ResultFromQuery(QueryResponse{ResponseCode: "0", CheckoutRequestID: "ws_CO_1", ResultCode: "1032", ResultDesc: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, 1032, res.ResultCode)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)

	_, err = ResultFromQuery(QueryResponse{ResultCode: ""})
	assert.Error(t, err, "empty result code")
}
