package dto

// PaymentVerifyRequest carries the provider-issued payment reference.
type PaymentVerifyRequest struct {
	Reference string `json:"reference"`
}

// PaymentVerifyResponse reports the escrow state after confirmation.
type PaymentVerifyResponse struct {
	OrderID    int64  `json:"order_id"`
	Escrow     string `json:"escrow_status"`
	ProofToken string `json:"proof_token"`
}
