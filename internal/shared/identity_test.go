package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), Identity{UserID: 7, CompanyID: 2})
	id, ok := IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id.UserID)

	_, ok = IdentityFromContext(context.Background())
	assert.False(t, ok)
}

func TestCanActOn(t *testing.T) {
	branch := Identity{UserID: 7, CompanyID: 2}
	assert.True(t, branch.CanActOn(2))
	assert.False(t, branch.CanActOn(1))

	system := Identity{UserID: 1, IsSystemUser: true}
	assert.True(t, system.CanActOn(1))
	assert.True(t, system.CanActOn(2))
}
