package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rec(id int64, user, ip string, res LoginResult, at time.Time) Record {
	r := Record{ID: id, IPAddress: ip, Result: res, AttemptedAt: at}
	if user != "" {
		r.UserID = &user
	}
	return r
}

func TestComputeStatisticsSuccessRate(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	var recs []Record
	for i := 0; i < 8; i++ {
		recs = append(recs, rec(int64(i+1), "u1", "10.0.0.1", ResultSuccess, from.Add(time.Duration(i)*time.Hour)))
	}
	recs = append(recs,
		rec(9, "u1", "10.0.0.2", ResultInvalidCredentials, from.Add(9*time.Hour)),
		rec(10, "", "10.0.0.3", ResultUserNotFound, from.Add(9*time.Hour)),
		// not a login attempt
		rec(11, "u1", "10.0.0.1", ResultLogout, from.Add(10*time.Hour)),
		// outside the range
		rec(12, "u2", "10.0.0.9", ResultSuccess, to),
	)

	st := ComputeStatistics(recs, from, to)
	assert.Equal(t, 10, st.TotalAttempts)
	assert.Equal(t, 8, st.SuccessfulLogins)
	assert.Equal(t, 2, st.FailedAttempts)
	assert.Equal(t, 80.0, st.SuccessRate)
	assert.Equal(t, 1, st.UniqueUsers)
	assert.Equal(t, 3, st.UniqueIPs)
	assert.Equal(t, 1, st.ByResult[ResultLogout])
	assert.Equal(t, 2, st.ByHour[9])
	assert.Len(t, st.TopFailureReasons, 2)
	assert.Equal(t, ResultInvalidCredentials, st.TopFailureReasons[0].Result)
}

func TestComputeStatisticsEmpty(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := ComputeStatistics(nil, from, from.Add(time.Hour))
	assert.Zero(t, st.SuccessRate)
	assert.Zero(t, st.TotalAttempts)
	assert.Empty(t, st.TopFailureReasons)
}

func TestRankIPAddresses(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs := []Record{
		rec(1, "u", "a", ResultSuccess, base),
		rec(2, "u", "b", ResultSuccess, base.Add(time.Minute)),
		rec(3, "u", "a", ResultInvalidCredentials, base.Add(2*time.Minute)),
		rec(4, "u", "c", ResultSuccess, base.Add(3*time.Minute)),
		rec(5, "u", "", ResultSuccess, base.Add(4*time.Minute)),
	}
	got := RankIPAddresses(recs, 2)
	assert.Equal(t, []IPUsage{
		{IPAddress: "a", Count: 2, LastUsed: base.Add(2 * time.Minute)},
		{IPAddress: "c", Count: 1, LastUsed: base.Add(3 * time.Minute)},
	}, got)
}
