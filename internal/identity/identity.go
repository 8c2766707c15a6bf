package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"

	"github.com/Vesta-Code/vesta/internal/clock"
	"github.com/Vesta-Code/vesta/internal/config"
)

// Role classifies the acting party for authorization decisions.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleCourier Role = "courier"
	RoleAdmin   Role = "admin"
)

// Context identifies who is acting on a request. It is resolved once at the
// transport boundary and passed explicitly into every coordinator call;
// nothing in the core reads ambient per-request state.
type Context struct {
	PartyID       int64
	Role          Role
	Impersonating bool
}

// Admin reports whether the actor carries admin privileges.
func (c Context) Admin() bool {
	return c.Role == RoleAdmin
}

// ErrInvalidSession is returned when a session token cannot be resolved.
var ErrInvalidSession = errors.New("invalid session token")

// Resolver turns session bearer tokens into party identities. HS256 JWTs
// stand in for the external identity service's session lookup.
type Resolver struct {
	secret string
	ttl    time.Duration
	clock  clock.Clock
}

// Module provides the identity resolver to Fx.
var Module = fx.Provide(NewResolver)

// NewResolver builds a Resolver from the configured session secret.
func NewResolver(cfg config.Config, clk clock.Clock) *Resolver {
	return &Resolver{
		secret: cfg.Escrow.SessionSecret,
		ttl:    cfg.Escrow.SessionTTL,
		clock:  clk,
	}
}

// Resolve validates a session token and extracts the acting party.
func (r *Resolver) Resolve(tokenString string) (Context, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(r.secret), nil
	}, jwt.WithTimeFunc(r.clock.Now))
	if err != nil || !parsed.Valid {
		return Context{}, ErrInvalidSession
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Context{}, ErrInvalidSession
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Context{}, ErrInvalidSession
	}
	partyID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || partyID <= 0 {
		return Context{}, ErrInvalidSession
	}

	role, _ := claims["role"].(string)
	switch Role(role) {
	case RoleBuyer, RoleSeller, RoleCourier, RoleAdmin:
	default:
		return Context{}, ErrInvalidSession
	}

	impersonating, _ := claims["imp"].(bool)

	return Context{
		PartyID:       partyID,
		Role:          Role(role),
		Impersonating: impersonating,
	}, nil
}

// Issue mints a session token for the given party. Used by seeders and tests;
// production sessions come from the external identity service.
func (r *Resolver) Issue(partyID int64, role Role) (string, error) {
	now := r.clock.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(partyID, 10),
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(r.ttl).Unix(),
	})
	return tok.SignedString([]byte(r.secret))
}
