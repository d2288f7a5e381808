package models

import "time"

// TypeBreakdown has one slot per earning type so every key is always present.
type TypeBreakdown struct {
	Transfer      int64 `json:"TRANSFER"`
	Tip           int64 `json:"TIP"`
	Subscription  int64 `json:"SUBSCRIPTION"`
	MenuPurchase  int64 `json:"MENU_PURCHASE"`
	MediaPurchase int64 `json:"MEDIA_PURCHASE"`
	CallSession   int64 `json:"CALL_SESSION"`
}

// Add accumulates amount under t. It returns false when t is not an earning type.
func (b *TypeBreakdown) Add(t TxType, amount int64) bool {
	switch t {
	case TxTypeTransfer:
		b.Transfer += amount
	case TxTypeTip:
		b.Tip += amount
	case TxTypeSubscription:
		b.Subscription += amount
	case TxTypeMenuPurchase:
		b.MenuPurchase += amount
	case TxTypeMediaPurchase:
		b.MediaPurchase += amount
	case TxTypeCallSession:
		b.CallSession += amount
	default:
		return false
	}
	return true
}

func (b TypeBreakdown) Get(t TxType) int64 {
	switch t {
	case TxTypeTransfer:
		return b.Transfer
	case TxTypeTip:
		return b.Tip
	case TxTypeSubscription:
		return b.Subscription
	case TxTypeMenuPurchase:
		return b.MenuPurchase
	case TxTypeMediaPurchase:
		return b.MediaPurchase
	case TxTypeCallSession:
		return b.CallSession
	}
	return 0
}

func (b TypeBreakdown) Total() int64 {
	return b.Transfer + b.Tip + b.Subscription + b.MenuPurchase + b.MediaPurchase + b.CallSession
}

// EarningsSummary is a seller's all-time settled income.
type EarningsSummary struct {
	SellerID string `json:"sellerId"`
	Total    int64  `json:"total"` // in cents
	Display  string `json:"totalDisplay"`
	Currency string `json:"currency"`
}

// MonthlyInsight breaks one calendar month of income down by type.
type MonthlyInsight struct {
	SellerID             string        `json:"sellerId"`
	Month                int           `json:"month"`
	Year                 int           `json:"year"`
	Breakdown            TypeBreakdown `json:"breakdown"`
	TotalMonthlyEarnings int64         `json:"totalMonthlyEarnings"`
	TotalDisplay         string        `json:"totalDisplay"`
	Currency             string        `json:"currency"`
}

// RecentPayment describes the latest payment between a pair. Found is false when there was none.
type RecentPayment struct {
	Found     bool      `json:"found"`
	Amount    int64     `json:"amount"`
	Type      TxType    `json:"type"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

// PayerInsight summarises everything one buyer has paid one seller.
type PayerInsight struct {
	BuyerID           string        `json:"buyerId"`
	SellerID          string        `json:"sellerId"`
	TotalAmount       int64         `json:"totalAmount"`
	HighestPayment    int64         `json:"highestPayment"`
	PaymentCount      int           `json:"paymentCount"`
	Breakdown         TypeBreakdown `json:"breakdown"`
	MostRecentPayment RecentPayment `json:"mostRecentPayment"`
	Currency          string        `json:"currency"`
}

// ReconciliationReport is the result of replaying a wallet's ledger.
type ReconciliationReport struct {
	WalletID      string `json:"walletId"`
	UserID        string `json:"userId"`
	Consistent    bool   `json:"consistent"`
	Expected      int64  `json:"expected"` // replayed balance
	Actual        int64  `json:"actual"`   // stored balance
	Drift         int64  `json:"drift"`
	RowsReplayed  int    `json:"rowsReplayed"`
	BrokenChainAt string `json:"brokenChainAt,omitempty"`
}
