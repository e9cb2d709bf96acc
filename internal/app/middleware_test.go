package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func callIdentity(t *testing.T, headers map[string]string) shared.Identity {
	t.Helper()
	var got shared.Identity
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = shared.IdentityFromContext(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	identityMiddleware(next).ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, ok)
	return got
}

func TestIdentityMiddlewareParsesHeaders(t *testing.T) {
	id := callIdentity(t, map[string]string{
		headerUserID:     "7",
		headerCompanyID:  "2",
		headerSystemUser: "1",
	})
	assert.Equal(t, int64(7), id.UserID)
	assert.Equal(t, int64(2), id.CompanyID)
	assert.True(t, id.IsSystemUser)
}

func TestIdentityMiddlewareIgnoresGarbage(t *testing.T) {
	id := callIdentity(t, map[string]string{
		headerUserID:     "not-a-number",
		headerSystemUser: "yes",
	})
	assert.Zero(t, id.UserID)
	assert.Zero(t, id.CompanyID)
	assert.False(t, id.IsSystemUser)
}
