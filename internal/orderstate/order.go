package orderstate

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the off-platform fiat settlement rail for an order.
type PaymentMethod string

const (
	PaymentBank PaymentMethod = "bank"
	PaymentCash PaymentMethod = "cash"
)

// SpreadPreference chooses the protocol fee percentage at order creation
// (spec §3). The mapping lives in internal/money so both the API layer and
// the lifecycle layer resolve it identically.
type SpreadPreference string

const (
	SpreadCheap   SpreadPreference = "cheap"
	SpreadBest    SpreadPreference = "best"
	SpreadFastest SpreadPreference = "fastest"
)

// PaymentDetails is the off-platform payment instruction snapshot, shaped
// per spec §9's guidance to replace an untyped record<string,unknown> with a
// tagged variant keyed on payment_method.
type PaymentDetails struct {
	Method        PaymentMethod `json:"method"`
	BankName      string        `json:"bank_name,omitempty"`
	AccountNumber string        `json:"account_number,omitempty"`
	AccountName   string        `json:"account_name,omitempty"`
	CashLocation  string        `json:"cash_location,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// Order is the central aggregate of the settlement core.
type Order struct {
	ID          string
	OrderNumber string

	SellerMerchantID string
	UserID           string
	BuyerMerchantID  string // optional, M2M trades only

	OfferID string
	Type    OrderType

	CryptoAmount    decimal.Decimal
	FiatAmount      decimal.Decimal
	Rate            decimal.Decimal
	CryptoCurrency  string
	FiatCurrency    string
	PaymentMethod   PaymentMethod
	PaymentDetails  PaymentDetails

	Status        Status
	OrderVersion  int64

	CreatedAt          time.Time
	AcceptedAt         *time.Time
	EscrowedAt         *time.Time
	PaymentSentAt      *time.Time
	PaymentConfirmedAt *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	ExpiresAt          time.Time

	EscrowDebitedEntityType PartyType
	EscrowDebitedEntityID   string
	EscrowDebitedAmount     decimal.Decimal
	EscrowTxHash            string
	ReleaseTxHash           string
	RefundTxHash            string

	ProtocolFeePercentage decimal.Decimal
	ProtocolFeeAmount     decimal.Decimal
}

// IsM2M reports whether this is a merchant-to-merchant trade.
func (o *Order) IsM2M() bool {
	return o.BuyerMerchantID != ""
}

// Payer resolves the payer party for EscrowLock per spec §4.4: the seller
// merchant in an M2M trade, otherwise merchant_id for buy orders and
// user_id for sell orders.
func (o *Order) Payer() (PartyType, string) {
	if o.IsM2M() {
		return PartyMerchant, o.SellerMerchantID
	}
	if o.Type == TypeBuy {
		return PartyMerchant, o.SellerMerchantID
	}
	return PartyUser, o.UserID
}

// Recipient resolves the escrow-release recipient per spec §4.4: "the
// opposite of the debited payer" — for buy orders buyer_merchant_id or else
// the user; for sell orders buyer_merchant_id or else the seller merchant.
func (o *Order) Recipient() (PartyType, string) {
	if o.Type == TypeBuy {
		if o.BuyerMerchantID != "" {
			return PartyMerchant, o.BuyerMerchantID
		}
		return PartyUser, o.UserID
	}
	if o.BuyerMerchantID != "" {
		return PartyMerchant, o.BuyerMerchantID
	}
	return PartyMerchant, o.SellerMerchantID
}

// FiatPayerID resolves the specific party obligated to send the off-platform
// fiat payment: the user for buy orders, the seller merchant for sell
// orders. Distinct from Payer(), which resolves the crypto escrow payer.
func (o *Order) FiatPayerID() string {
	if o.Type == TypeBuy {
		return o.UserID
	}
	return o.SellerMerchantID
}

// FiatReceiverID resolves the specific party expecting the off-platform
// fiat payment: the seller merchant for buy orders, the user for sell
// orders.
func (o *Order) FiatReceiverID() string {
	if o.Type == TypeBuy {
		return o.SellerMerchantID
	}
	return o.UserID
}

// OriginalPayer returns the recorded escrow-debit snapshot, the refund
// recipient per spec §4.4 — never re-derived from the current merchant_id,
// so a later reassignment of the order's seller can't redirect a refund.
func (o *Order) OriginalPayer() (PartyType, string, bool) {
	if o.EscrowTxHash == "" {
		return "", "", false
	}
	return o.EscrowDebitedEntityType, o.EscrowDebitedEntityID, true
}
