package audit

import (
	"math"
	"sort"
	"time"
)

const topFailureReasons = 5

// ComputeStatistics aggregates recs over [from, to). Records outside the range
// are ignored.
func ComputeStatistics(recs []Record, from, to time.Time) Statistics {
	st := Statistics{
		From:     from,
		To:       to,
		ByResult: make(map[LoginResult]int),
	}
	users := make(map[string]struct{})
	ips := make(map[string]struct{})
	failures := make(map[LoginResult]int)

	for _, r := range recs {
		if r.AttemptedAt.Before(from) || !r.AttemptedAt.Before(to) {
			continue
		}
		st.ByResult[r.Result]++
		if r.IsSuspicious {
			st.SuspiciousAttempts++
		}
		if !r.Result.IsLoginAttempt() {
			continue
		}
		st.TotalAttempts++
		st.ByHour[r.AttemptedAt.UTC().Hour()]++
		if r.Result == ResultSuccess {
			st.SuccessfulLogins++
		}
		if r.Result.IsFailure() {
			st.FailedAttempts++
			failures[r.Result]++
		}
		if r.UserID != nil {
			users[*r.UserID] = struct{}{}
		}
		if r.IPAddress != "" {
			ips[r.IPAddress] = struct{}{}
		}
	}

	st.UniqueUsers = len(users)
	st.UniqueIPs = len(ips)
	if st.TotalAttempts > 0 {
		rate := float64(st.SuccessfulLogins) / float64(st.TotalAttempts) * 100
		st.SuccessRate = math.Round(rate*100) / 100
	}

	st.TopFailureReasons = make([]ResultCount, 0, len(failures))
	for res, n := range failures {
		st.TopFailureReasons = append(st.TopFailureReasons, ResultCount{Result: res, Count: n})
	}
	sort.Slice(st.TopFailureReasons, func(i, j int) bool {
		a, b := st.TopFailureReasons[i], st.TopFailureReasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Result < b.Result
	})
	if len(st.TopFailureReasons) > topFailureReasons {
		st.TopFailureReasons = st.TopFailureReasons[:topFailureReasons]
	}
	return st
}

// RankIPAddresses groups recs by source address, most used first; ties go to
// the most recently used address.
func RankIPAddresses(recs []Record, topN int) []IPUsage {
	byIP := make(map[string]*IPUsage)
	for _, r := range recs {
		if r.IPAddress == "" {
			continue
		}
		u, ok := byIP[r.IPAddress]
		if !ok {
			u = &IPUsage{IPAddress: r.IPAddress}
			byIP[r.IPAddress] = u
		}
		u.Count++
		if r.AttemptedAt.After(u.LastUsed) {
			u.LastUsed = r.AttemptedAt
		}
	}
	out := make([]IPUsage, 0, len(byIP))
	for _, u := range byIP {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if !out[i].LastUsed.Equal(out[j].LastUsed) {
			return out[i].LastUsed.After(out[j].LastUsed)
		}
		return out[i].IPAddress < out[j].IPAddress
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
