package dto

// ClaimResponse is returned to the courier that won the claim.
type ClaimResponse struct {
	PickupCode string `json:"pickup_code"`
}

// BalanceResponse reconciles a seller's escrow totals.
type BalanceResponse struct {
	ReleasedTotal int64 `json:"released_total"`
	RefundedTotal int64 `json:"refunded_total"`
	HeldTotal     int64 `json:"held_total"`
}
