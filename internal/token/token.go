// Package token issues and verifies confirmation tokens.  A token is a
// short-lived, signed bearer credential binding a waitlist entry, a
// slot, a tenant and one action (confirm or decline).  Because it is
// self-contained and cryptographically signed, it can be handed to an
// external channel, such as a link in an SMS, without any
// server-side session, and nothing about it is persisted.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Action is the single operation a token authorizes.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionDecline Action = "decline"
)

// Verification errors.  Each is distinct so the confirm endpoint can
// render a specific message instead of a generic failure.
var (
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenWrongAction = errors.New("token not valid for this action")
	ErrTokenWrongTenant = errors.New("token issued for a different tenant")
)

// Claims is the decoded payload of a confirmation token.
type Claims struct {
	EntryID  uint64
	SlotID   uint64
	TenantID uint64
	Action   Action
}

// Issue builds and signs an HS256 JWT for the given claims, expiring
// after ttl.  The JWT carries the entry, slot and tenant IDs, the
// action, and the standard exp/iat claims.
func Issue(secret string, c Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"entry_id":  c.EntryID,
		"slot_id":   c.SlotID,
		"tenant_id": c.TenantID,
		"action":    string(c.Action),
		"exp":       now.Add(ttl).Unix(),
		"iat":       now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// Verify parses and validates a raw token.  Beyond the signature and
// expiry it enforces that the token's tenant matches the verifying
// context and that the token authorizes the wanted action; a validly
// signed token from another tenant is rejected.
func Verify(secret, raw string, wantTenant uint64, wantAction Action) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if !tok.Valid {
		return Claims{}, ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	c := Claims{
		EntryID:  asUint64(mc["entry_id"]),
		SlotID:   asUint64(mc["slot_id"]),
		TenantID: asUint64(mc["tenant_id"]),
	}
	action, _ := mc["action"].(string)
	c.Action = Action(action)
	if c.EntryID == 0 || c.SlotID == 0 || c.TenantID == 0 {
		return Claims{}, ErrTokenInvalid
	}
	// Tenant check comes before the action check: a cross-tenant token
	// is rejected regardless of anything else about it.
	if c.TenantID != wantTenant {
		return Claims{}, ErrTokenWrongTenant
	}
	if c.Action != wantAction {
		return Claims{}, ErrTokenWrongAction
	}
	return c, nil
}

// asUint64 converts the numeric representations produced by JSON
// decoding of claims.  IDs pass through float64, which is exact only
// up to 2^53; auto-increment IDs stay far below that, but switch to
// string claims before issuing random uint64 IDs.
func asUint64(v interface{}) uint64 {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint64:
		return n
	case int64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	}
	return 0
}
