package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/fx"

	"github.com/Vesta-Code/vesta/internal/clock"
	"github.com/Vesta-Code/vesta/internal/config"
)

// Payload is the delivery-proof capsule bound into a token. It identifies
// one order, its frozen amount, and both financial parties.
type Payload struct {
	OrderID  int64     `json:"order_id"`
	Amount   int64     `json:"amount"`
	SellerID int64     `json:"seller_id"`
	BuyerID  int64     `json:"buyer_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// Codec mints and verifies opaque delivery-proof tokens. Tokens are
// AES-256-GCM sealed, so a successful decrypt proves both confidentiality
// and integrity without a database round-trip; the issuance timestamp
// bounds their lifetime instead of a revocation list.
type Codec struct {
	aead  cipher.AEAD
	ttl   time.Duration
	clock clock.Clock
}

// Module provides the token codec to Fx.
var Module = fx.Provide(NewCodec)

// NewCodec derives the sealing key from the configured escrow secret.
func NewCodec(cfg config.Config, clk clock.Clock) (*Codec, error) {
	return newCodec(cfg.Escrow.TokenSecret, cfg.Escrow.TokenTTL, clk)
}

func newCodec(secret string, ttl time.Duration, clk clock.Clock) (*Codec, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Codec{aead: aead, ttl: ttl, clock: clk}, nil
}

// Mint seals a fresh token for the order. Re-minting produces a different
// token each call; callers store only the newest one and treat older mints
// as superseded.
func (c *Codec) Mint(orderID, amount, sellerID, buyerID int64) (string, error) {
	payload := Payload{
		OrderID:  orderID,
		Amount:   amount,
		SellerID: sellerID,
		BuyerID:  buyerID,
		IssuedAt: c.clock.Now(),
	}
	plain, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Verify opens a token and returns its payload, or nil for anything that
// is not a currently-valid capsule: malformed encoding, tampered or foreign
// ciphertext, structural mismatch, or issuance older than the TTL. The
// nil/non-nil result is the whole contract; callers must still compare the
// decoded order against their stored token to reject replays across orders.
func (c *Codec) Verify(token string) *Payload {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil
	}
	if len(raw) < c.aead.NonceSize() {
		return nil
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil
	}

	var payload Payload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil
	}
	if payload.OrderID == 0 || payload.IssuedAt.IsZero() {
		return nil
	}
	if c.clock.Now().Sub(payload.IssuedAt) > c.ttl {
		return nil
	}
	return &payload
}
