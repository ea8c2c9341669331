package wallet

import "time"

// holdRequest is the payload for POST /v1/holds.
type holdRequest struct {
	Account        string `json:"account"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// holdResponse is returned by both a fresh hold and an idempotent replay.
type holdResponse struct {
	TxID      string    `json:"tx_id"`
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// releaseRequest is the payload for POST /v1/holds/{txID}/release.
type releaseRequest struct {
	SellerAccount string  `json:"seller_account"`
	FeeRate       float64 `json:"fee_rate"`
}

// releaseResponse carries the fee split the wallet executed.
type releaseResponse struct {
	TxID      string    `json:"tx_id"`
	NetAmount int64     `json:"net_amount"`
	FeeAmount int64     `json:"fee_amount"`
	CreatedAt time.Time `json:"created_at"`
}

// refundResponse is returned by POST /v1/holds/{txID}/refund.
type refundResponse struct {
	TxID      string    `json:"tx_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// errorResponse is the wallet service's error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
