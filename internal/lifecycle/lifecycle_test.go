package lifecycle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/oxzoid/settlementcore/internal/orderstate"
)

func validCreateOrderRequest() CreateOrderRequest {
	return CreateOrderRequest{
		SellerMerchantID: "m1",
		UserID:           "u1",
		Type:             orderstate.TypeBuy,
		CryptoAmount:     decimal.NewFromInt(10),
		Rate:             decimal.NewFromInt(65000),
		PaymentMethod:    orderstate.PaymentBank,
	}
}

func TestCreateOrderRequestValidateAcceptsWellFormedRequest(t *testing.T) {
	req := validCreateOrderRequest()
	assert.NoError(t, req.validate())
}

func TestCreateOrderRequestValidateRequiresParties(t *testing.T) {
	req := validCreateOrderRequest()
	req.SellerMerchantID = ""
	assert.Error(t, req.validate())

	req = validCreateOrderRequest()
	req.UserID = ""
	assert.Error(t, req.validate())
}

func TestCreateOrderRequestValidateRejectsBadType(t *testing.T) {
	req := validCreateOrderRequest()
	req.Type = orderstate.OrderType("swap")
	assert.Error(t, req.validate())
}

func TestCreateOrderRequestValidateRejectsNonPositiveCryptoAmount(t *testing.T) {
	req := validCreateOrderRequest()
	req.CryptoAmount = decimal.Zero
	assert.Error(t, req.validate())

	req = validCreateOrderRequest()
	req.CryptoAmount = decimal.NewFromInt(-1)
	assert.Error(t, req.validate())
}

func TestCreateOrderRequestValidateRejectsNonPositiveRate(t *testing.T) {
	req := validCreateOrderRequest()
	req.Rate = decimal.Zero
	assert.Error(t, req.validate())
}

func TestCreateOrderRequestValidateRejectsBadPaymentMethod(t *testing.T) {
	req := validCreateOrderRequest()
	req.PaymentMethod = orderstate.PaymentMethod("crypto")
	assert.Error(t, req.validate())
}
