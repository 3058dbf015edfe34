package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxzi/hyperdrive/internal/apperr"
)

func TestRequire(t *testing.T) {
	viewer := Actor{ID: "u1", OrganizationID: "org-1", Role: RoleViewer}
	assert.NoError(t, viewer.Require(PermRead))

	err := viewer.Require(PermCampaignWrite)
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	assert.True(t, Actor{Role: RolePlatformAdmin}.Can(PermCampaignReview))
	assert.False(t, Actor{Role: RoleOwner}.Can(PermCampaignReview))
	assert.False(t, Actor{Role: "bogus"}.Can(PermRead))
}

func TestSees(t *testing.T) {
	a := Actor{OrganizationID: "org-1", Role: RoleAdmin}
	assert.True(t, a.Sees("org-1"))
	assert.False(t, a.Sees("org-2"))
	assert.True(t, Actor{Role: RolePlatformAdmin}.Sees("org-2"))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Reviewer ")
	require.NoError(t, err)
	assert.Equal(t, RoleReviewer, r)

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), System("org-1"))
	a, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleSystem, a.Role)
}

func TestTokenRoundTrip(t *testing.T) {
	v, err := NewTokenVerifier("s3cret", "hyperdrive", 0)
	require.NoError(t, err)

	want := Actor{ID: "u1", OrganizationID: "org-1", Role: RoleManager}
	token, err := v.Sign(want, time.Hour, time.Now())
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokenRejected(t *testing.T) {
	v, _ := NewTokenVerifier("s3cret", "", 0)
	other, _ := NewTokenVerifier("different", "", 0)

	token, err := other.Sign(Actor{ID: "u1", Role: RoleOwner}, time.Hour, time.Now())
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.Error(t, err, "wrong secret")

	expired, err := v.Sign(Actor{ID: "u1", Role: RoleOwner}, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err, "expired")

	_, err = NewTokenVerifier(" ", "", 0)
	assert.Error(t, err)
}
