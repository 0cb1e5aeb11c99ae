package access

import (
	"errors"
	"testing"
	"time"

	"bitwise74/drop-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainVerifier treats the stored hash as the plaintext, "!" marks a corrupt hash
type plainVerifier struct {
	calls int
}

func (p *plainVerifier) VerifyPasswd(plain, hash string) (bool, error) {
	p.calls++
	if hash == "!" {
		return false, errors.New("invalid hash format")
	}
	return plain == hash, nil
}

func ptr[T any](v T) *T { return &v }

func TestDecide(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	owner := "owner-1"

	private := func(mut ...func(*model.Drop)) *model.Drop {
		d := &model.Drop{
			Code:         "ABC123",
			Visibility:   model.VisibilityPrivate,
			PasscodeHash: ptr("vault123"),
			OwnerID:      ptr(owner),
			IsLive:       true,
		}
		for _, m := range mut {
			m(d)
		}
		return d
	}

	public := func(mut ...func(*model.Drop)) *model.Drop {
		d := private(mut...)
		d.Visibility = model.VisibilityPublic
		d.PasscodeHash = nil
		return d
	}

	notLive := func(d *model.Drop) { d.IsLive = false }

	tests := []struct {
		name      string
		drop      *model.Drop
		requester string
		passcode  *string
		want      Decision
	}{
		{"missing drop", nil, owner, ptr("vault123"), deny(ReasonNotFound)},
		{"not live beats owner", private(notLive), owner, nil, deny(ReasonNotLive)},
		{"not live beats passcode", private(notLive), "", ptr("vault123"), deny(ReasonNotLive)},
		{"not live public", public(notLive), "", nil, deny(ReasonNotLive)},
		{"not released", private(func(d *model.Drop) { d.ReleaseAt = ptr(now.Add(time.Minute)) }), owner, nil, deny(ReasonNotReleased)},
		{"released", public(func(d *model.Drop) { d.ReleaseAt = ptr(now) }), "", nil, allow(TierPublicViewer)},
		{"expired at now", public(func(d *model.Drop) { d.ExpiresAt = ptr(now) }), "", nil, deny(ReasonExpired)},
		{"expired owner", private(func(d *model.Drop) { d.ExpiresAt = ptr(now.Add(-time.Hour)) }), owner, nil, deny(ReasonExpired)},
		{"not yet expired", public(func(d *model.Drop) { d.ExpiresAt = ptr(now.Add(time.Second)) }), "", nil, allow(TierPublicViewer)},
		{"owner without passcode", private(), owner, nil, allow(TierOwner)},
		{"owner with wrong passcode", private(), owner, ptr("nope"), allow(TierOwner)},
		{"owner of public drop", public(), owner, nil, allow(TierOwner)},
		{"public anonymous", public(), "", nil, allow(TierPublicViewer)},
		{"public other user", public(), "someone", ptr("ignored"), allow(TierPublicViewer)},
		{"private no passcode", private(), "", nil, deny(ReasonPasscodeRequired)},
		{"private empty passcode", private(), "someone", ptr(""), deny(ReasonPasscodeRequired)},
		{"private wrong passcode", private(), "", ptr("wrong"), deny(ReasonInvalidPasscode)},
		{"private right passcode", private(), "", ptr("vault123"), allow(TierPasscodeViewer)},
		{"ownerless drop", private(func(d *model.Drop) { d.OwnerID = nil }), "", ptr("vault123"), allow(TierPasscodeViewer)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&plainVerifier{})

			got, err := e.Decide(tt.drop, tt.requester, tt.passcode, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideOwnerSkipsVerifier(t *testing.T) {
	v := &plainVerifier{}
	e := NewEngine(v)

	d := &model.Drop{Visibility: model.VisibilityPrivate, PasscodeHash: ptr("!"), OwnerID: ptr("o"), IsLive: true}

	got, err := e.Decide(d, "o", ptr("anything"), time.Now())
	require.NoError(t, err)
	assert.True(t, got.IsOwner())
	assert.Zero(t, v.calls)
}

func TestDecideVerifierFailure(t *testing.T) {
	e := NewEngine(&plainVerifier{})

	d := &model.Drop{Visibility: model.VisibilityPrivate, PasscodeHash: ptr("!"), IsLive: true}
	_, err := e.Decide(d, "", ptr("x"), time.Now())
	assert.Error(t, err)

	d.PasscodeHash = nil
	_, err = e.Decide(d, "", ptr("x"), time.Now())
	assert.Error(t, err)
}
