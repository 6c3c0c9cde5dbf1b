package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Token Tests
// =============================================================================

func TestGenerateToken_Unique(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name           string
		cookie, header string
		want           bool
	}{
		{"match", "abc", "abc", true},
		{"mismatch", "abc", "abd", false},
		{"empty cookie", "", "abc", false},
		{"empty header", "abc", "", false},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateToken(tt.cookie, tt.header))
		})
	}
}

func TestValidateRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.False(t, ValidateRequest(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
	assert.False(t, ValidateRequest(req))

	req.Header.Set(HeaderName, "tok")
	assert.True(t, ValidateRequest(req))
}

func TestIsSafeMethod(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		assert.True(t, IsSafeMethod(m), m)
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		assert.False(t, IsSafeMethod(m), m)
	}
}

// =============================================================================
// EnsureToken Tests
// =============================================================================

func TestEnsureToken_IssuesCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	token, err := EnsureToken(rec, httptest.NewRequest(http.MethodGet, "/", nil), true)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, token, rec.Header().Get(HeaderName))
}

func TestEnsureToken_ReusesExisting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "existing"})
	rec := httptest.NewRecorder()

	token, err := EnsureToken(rec, req, false)
	require.NoError(t, err)

	assert.Equal(t, "existing", token)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "existing", rec.Header().Get(HeaderName))
}
