// Package access decides who may see the contents of a drop
package access

import (
	"fmt"
	"time"

	"bitwise74/drop-api/internal/model"
)

type Tier string

const (
	TierOwner          Tier = "OWNER"
	TierPublicViewer   Tier = "PUBLIC_VIEWER"
	TierPasscodeViewer Tier = "PASSCODE_VIEWER"
)

type Reason string

const (
	ReasonNotFound         Reason = "NOT_FOUND"
	ReasonNotLive          Reason = "NOT_LIVE"
	ReasonNotReleased      Reason = "NOT_RELEASED"
	ReasonExpired          Reason = "EXPIRED"
	ReasonPasscodeRequired Reason = "PASSCODE_REQUIRED"
	ReasonInvalidPasscode  Reason = "INVALID_PASSCODE"
)

type Decision struct {
	Allow  bool
	Tier   Tier
	Reason Reason
}

func allow(t Tier) Decision { return Decision{Allow: true, Tier: t} }
func deny(r Reason) Decision { return Decision{Reason: r} }
func (d Decision) IsOwner() bool { return d.Allow && d.Tier == TierOwner }

// Verifier compares a plaintext secret against a stored hash
type Verifier interface {
	VerifyPasswd(plain, hash string) (bool, error)
}

type Engine struct {
	verifier Verifier
}

func NewEngine(v Verifier) *Engine {
	return &Engine{verifier: v}
}

// Decide evaluates the rules below in order and stops at the first that
// applies. Availability is checked before ownership, so not even the owner
// can view a drop that isn't live, released and unexpired.
//
//  1. no drop                      -> deny NOT_FOUND
//  2. not live                     -> deny NOT_LIVE
//  3. release time in the future   -> deny NOT_RELEASED
//  4. expiry time reached          -> deny EXPIRED
//  5. requester owns the drop      -> allow OWNER
//  6. public drop                  -> allow PUBLIC_VIEWER
//  7. private drop, no passcode    -> deny PASSCODE_REQUIRED
//  8. passcode matches             -> allow PASSCODE_VIEWER, else deny INVALID_PASSCODE
//
// An empty passcode counts as no passcode. A non-nil error means the
// stored hash couldn't be checked and says nothing about the requester.
func (e *Engine) Decide(drop *model.Drop, requesterID string, passcode *string, now time.Time) (Decision, error) {
	if drop == nil {
		return deny(ReasonNotFound), nil
	}

	if !drop.IsLive {
		return deny(ReasonNotLive), nil
	}

	if drop.ReleaseAt != nil && drop.ReleaseAt.After(now) {
		return deny(ReasonNotReleased), nil
	}

	if drop.ExpiresAt != nil && !drop.ExpiresAt.After(now) {
		return deny(ReasonExpired), nil
	}

	if drop.OwnedBy(requesterID) {
		return allow(TierOwner), nil
	}

	if drop.IsPublic() {
		return allow(TierPublicViewer), nil
	}

	if passcode == nil || *passcode == "" {
		return deny(ReasonPasscodeRequired), nil
	}

	if drop.PasscodeHash == nil {
		return Decision{}, fmt.Errorf("private drop %s has no passcode hash", drop.Code)
	}

	ok, err := e.verifier.VerifyPasswd(*passcode, *drop.PasscodeHash)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to verify passcode, %w", err)
	}

	if !ok {
		return deny(ReasonInvalidPasscode), nil
	}

	return allow(TierPasscodeViewer), nil
}
