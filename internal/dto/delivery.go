package dto

// DeliveryVerifyRequest carries the scanned bearer token.
type DeliveryVerifyRequest struct {
	Token string `json:"token"`
}

// DeliveryVerifyResponse reports the released order.
type DeliveryVerifyResponse struct {
	OrderID int64  `json:"order_id"`
	Escrow  string `json:"escrow_status"`
}

// ReleaseKeyRequest carries the seller-submitted numeric key.
type ReleaseKeyRequest struct {
	Key string `json:"key"`
}

// PickupRequest carries the courier's pickup code; empty for self-delivery.
type PickupRequest struct {
	Code string `json:"code"`
}

// PickupResponse reports the pickup transition and the generated release key.
type PickupResponse struct {
	OrderID    int64  `json:"order_id"`
	Status     string `json:"status"`
	ReleaseKey string `json:"release_key"`
}
