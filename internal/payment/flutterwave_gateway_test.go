package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlutterwave() *flutterwaveGateway {
	return NewFlutterwaveGateway("FLWSECK_TEST", &http.Client{}).(*flutterwaveGateway)
}

func TestFlutterwaveGateway_InitializePayment(t *testing.T) {
	ctx := context.Background()
	req := InitializeRequest{
		Email:       "a@b.com",
		AmountMinor: 50050,
		Currency:    "NGN",
		Reference:   "PAY_CONS_3_1759320000000",
		CallbackURL: "http://localhost:3000/api/v1/payment/callback",
		FirstName:   "Ada",
		LastName:    "Obi",
		Phone:       "0801 234 5678",
	}

	t.Run("Success", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v3/payments", r.URL.Path)
			assert.Equal(t, "Bearer FLWSECK_TEST", r.Header.Get("Authorization"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 500.5, body["amount"])
			assert.Equal(t, "PAY_CONS_3_1759320000000", body["tx_ref"])
			assert.Equal(t, "http://localhost:3000/api/v1/payment/callback", body["redirect_url"])

			customer := body["customer"].(map[string]interface{})
			assert.Equal(t, "Ada Obi", customer["name"])
			assert.Equal(t, "+2348012345678", customer["phonenumber"])

			return jsonResponse(http.StatusOK, `{
				"status": "success",
				"message": "Hosted Link",
				"data": {"link": "https://checkout.flutterwave.com/v3/hosted/pay/f524c1196ffda5556341"}
			}`)
		})

		resp, err := gw.InitializePayment(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/f524c1196ffda5556341", resp.AuthorizationURL)
		assert.Empty(t, resp.AccessCode)
		assert.Equal(t, req.Reference, resp.Reference)
	})

	t.Run("GeneratesReferenceWhenMissing", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"status":"success","data":{"link":"https://x"}}`)
		})

		in := req
		in.Reference = ""
		resp, err := gw.InitializePayment(ctx, in)
		require.NoError(t, err)
		assert.Regexp(t, `^FLW_\d+_[0-9A-F]{10}$`, resp.Reference)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		gw := newTestFlutterwave()
		in := req
		in.AmountMinor = -1
		_, err := gw.InitializePayment(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("ErrorEnvelope", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"status":"error","message":"Invalid currency provided","data":null}`)
		})

		_, err := gw.InitializePayment(ctx, req)
		assert.ErrorIs(t, err, ErrGateway)
		assert.Contains(t, err.Error(), "Invalid currency provided")
	})

	t.Run("NetworkError", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripperWithError(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("i/o timeout")
		})

		_, err := gw.InitializePayment(ctx, req)
		assert.ErrorIs(t, err, ErrGateway)
	})
}

func TestFlutterwaveGateway_VerifyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, "/v3/transactions/verify_by_reference", r.URL.Path)
			assert.Equal(t, "PAY_CONS_3_1", r.URL.Query().Get("tx_ref"))
			return jsonResponse(http.StatusOK, `{
				"status": "success",
				"message": "Transaction fetched successfully",
				"data": {
					"id": 288200108,
					"tx_ref": "PAY_CONS_3_1",
					"amount": 500.5,
					"currency": "NGN",
					"status": "successful",
					"created_at": "2025-10-01T12:05:00.000Z",
					"customer": {"email": "a@b.com", "name": "Ada Chioma Obi"},
					"meta": {"paymentType": "consultation"}
				}
			}`)
		})

		resp, err := gw.VerifyPayment(ctx, "PAY_CONS_3_1")
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "successful", resp.Status)
		assert.True(t, decimal.RequireFromString("500.5").Equal(resp.AmountMajor))
		assert.Equal(t, int64(50050), ToMinor(resp.AmountMajor))
		assert.Equal(t, "Ada", resp.Customer.FirstName)
		assert.Equal(t, "Chioma Obi", resp.Customer.LastName)
		assert.NotNil(t, resp.PaidAt)
		assert.Equal(t, "consultation", resp.Metadata["paymentType"])
	})

	t.Run("Failed", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"status":"success","data":{"id":1,"tx_ref":"PAY_CONS_3_1","amount":500.5,"status":"failed"}}`)
		})

		resp, err := gw.VerifyPayment(ctx, "PAY_CONS_3_1")
		require.NoError(t, err)
		assert.False(t, resp.Success)
	})

	t.Run("NotFound", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusBadRequest, `{"status":"error","message":"No transaction was found for this id","data":null}`)
		})

		_, err := gw.VerifyPayment(ctx, "missing")
		var gwErr *GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, ProviderFlutterwave, gwErr.Provider)
		assert.Equal(t, "No transaction was found for this id", gwErr.Message)
	})
}

func TestFlutterwaveGateway_RefundPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("ResolvesTransactionID", func(t *testing.T) {
		gw := newTestFlutterwave()
		var calls []string
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			calls = append(calls, r.Method+" "+r.URL.Path)
			if r.Method == http.MethodGet {
				return jsonResponse(http.StatusOK, `{"status":"success","data":{"id":288200108,"tx_ref":"PAY_ORD_1_1","amount":500.5,"status":"successful"}}`)
			}

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 100.0, body["amount"])
			assert.Equal(t, "duplicate", body["comments"])
			return jsonResponse(http.StatusOK, `{"status":"success","message":"Transaction refund initiated","data":{"id":75923}}`)
		})

		amount := int64(10000)
		resp, err := gw.RefundPayment(ctx, RefundRequest{Reference: "PAY_ORD_1_1", AmountMinor: &amount, Reason: "duplicate"})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.True(t, decimal.NewFromInt(100).Equal(resp.RefundedAmount))
		assert.Equal(t, "Transaction refund initiated", resp.Message)
		assert.Equal(t, []string{
			"GET /v3/transactions/verify_by_reference",
			"POST /v3/transactions/288200108/refund",
		}, calls)
	})

	t.Run("FullRefund", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			if r.Method == http.MethodGet {
				return jsonResponse(http.StatusOK, `{"status":"success","data":{"id":7,"amount":500.5,"status":"successful"}}`)
			}
			return jsonResponse(http.StatusOK, `{"status":"success","message":"ok","data":{}}`)
		})

		resp, err := gw.RefundPayment(ctx, RefundRequest{Reference: "PAY_ORD_1_1"})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("500.5").Equal(resp.RefundedAmount))
	})

	t.Run("MissingTransactionID", func(t *testing.T) {
		gw := newTestFlutterwave()
		gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"status":"success","data":{"tx_ref":"PAY_ORD_1_1"}}`)
		})

		_, err := gw.RefundPayment(ctx, RefundRequest{Reference: "PAY_ORD_1_1"})
		assert.ErrorIs(t, err, ErrGateway)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		zero := int64(0)
		_, err := newTestFlutterwave().RefundPayment(ctx, RefundRequest{Reference: "PAY_ORD_1_1", AmountMinor: &zero})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestFlutterwaveGateway_GetPaymentDetails(t *testing.T) {
	gw := newTestFlutterwave()
	gw.call.client.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, `{"status":"success","data":{"id":288200108,"status":"successful"}}`)
	})

	raw, err := gw.GetPaymentDetails(context.Background(), "PAY_ORD_1_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":288200108,"status":"successful"}`, string(raw))
}
