package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A new LoginResult must be classified before it can be recorded.
func TestLoginResultClassificationIsExhaustive(t *testing.T) {
	seen := map[LoginResult]bool{}
	for _, r := range AllResults() {
		_, ok := r.classify()
		assert.Truef(t, ok, "%s has no classification", r)
		assert.Falsef(t, seen[r], "%s listed twice", r)
		seen[r] = true

		parsed, err := ParseLoginResult(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, parsed)

		if r.IsFailure() {
			assert.True(t, r.IsLoginAttempt(), "%s: failures are login attempts", r)
			assert.False(t, r.ResetsFailureWindow(), "%s: a failure cannot reset the window", r)
		}
	}
}

func TestLoginResultClasses(t *testing.T) {
	assert.ElementsMatch(t, []LoginResult{
		ResultUserNotFound, ResultInvalidCredentials, ResultAccountLocked,
		ResultAccountDisabled, ResultTooManyAttempts,
	}, FailureResults())
	assert.ElementsMatch(t, []LoginResult{ResultSuccess, ResultPasswordReset, ResultAdminUnlock}, ResetResults())
	assert.NotContains(t, AttemptResults(), ResultLogout)
	assert.Contains(t, AttemptResults(), ResultSuccess)
}

func TestUnknownResultCountsAsFailure(t *testing.T) {
	r := LoginResult("mystery")
	assert.False(t, r.Valid())
	assert.True(t, r.IsFailure())
	_, err := ParseLoginResult("mystery")
	assert.Error(t, err)
}
