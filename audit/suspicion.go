package audit

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/metrics"
)

// Assessment reports which suspicion signals fired for a user and address.
type Assessment struct {
	NewIP              bool `json:"new_ip"`
	FailedFromIP       bool `json:"failed_from_ip"`
	RapidAttempts      bool `json:"rapid_attempts"`
	ImprobableMobility bool `json:"improbable_mobility"`
}

// Suspicious reports whether any signal fired.
func (a Assessment) Suspicious() bool {
	return a.NewIP || a.FailedFromIP || a.RapidAttempts || a.ImprobableMobility
}

// Reason lists the fired signals, comma separated.
func (a Assessment) Reason() string {
	var parts []string
	if a.NewIP {
		parts = append(parts, "new ip")
	}
	if a.FailedFromIP {
		parts = append(parts, "repeated failures from ip")
	}
	if a.RapidAttempts {
		parts = append(parts, "rapid attempts")
	}
	if a.ImprobableMobility {
		parts = append(parts, "multiple locations")
	}
	return strings.Join(parts, ", ")
}

// DetectSuspicious evaluates the suspicion signals for a login by userID from
// ipAddress. The result is advisory and never blocks a login.
//
// It fails open: any error is logged and reported as not suspicious, so an
// audit store outage cannot lock users out through this path.
func (s *Service) DetectSuspicious(ctx context.Context, userID, ipAddress string, window time.Duration) bool {
	a, err := s.Assess(ctx, userID, ipAddress, window)
	if err != nil {
		metrics.SuspicionCheckErrors.Inc()
		s.log.WithFields(logrus.Fields{
			"op":      "audit.DetectSuspicious",
			"user_id": userID,
			"ip":      ipAddress,
		}).WithError(err).Warn("suspicion check failed; treating as not suspicious")
		return false
	}
	return a.Suspicious()
}

// Assess evaluates each suspicion signal independently:
//
//   - new ip: no successful login by the user from ipAddress within window
//   - failed from ip: at least FailedFromIPCount failures from ipAddress within window
//   - rapid attempts: at least RapidAttemptCount attempts by the user within RapidWindow
//   - improbable mobility: at least MobilityIPCount distinct addresses, counting
//     ipAddress, among the user's successful logins within MobilityWindow
//
// Mobility is a distinct-address count only; no geolocation is involved.
func (s *Service) Assess(ctx context.Context, userID, ipAddress string, window time.Duration) (Assessment, error) {
	const op = "audit.Assess"
	if window <= 0 {
		window = s.policy.SuspicionWindow
	}
	ipAddress = strings.TrimSpace(ipAddress)
	if strings.TrimSpace(userID) == "" {
		return Assessment{}, autherr.Validation(op, "user id required")
	}
	now := s.clock.Now()
	uid := userID
	var a Assessment

	if ipAddress != "" {
		seen, err := s.store.Count(ctx, Filter{
			UserID:    &uid,
			IPAddress: ipAddress,
			Results:   []LoginResult{ResultSuccess},
			Since:     now.Add(-window),
		})
		if err != nil {
			return Assessment{}, autherr.Storage(op, err)
		}
		a.NewIP = seen == 0

		failed, err := s.store.Count(ctx, Filter{
			IPAddress: ipAddress,
			Results:   FailureResults(),
			Since:     now.Add(-window),
		})
		if err != nil {
			return Assessment{}, autherr.Storage(op, err)
		}
		a.FailedFromIP = failed >= s.policy.FailedFromIPCount
	}

	rapid, err := s.store.Count(ctx, Filter{
		UserID:  &uid,
		Results: AttemptResults(),
		Since:   now.Add(-s.policy.RapidWindow),
	})
	if err != nil {
		return Assessment{}, autherr.Storage(op, err)
	}
	a.RapidAttempts = rapid >= s.policy.RapidAttemptCount

	recent, err := s.store.Find(ctx, Filter{
		UserID:  &uid,
		Results: []LoginResult{ResultSuccess},
		Since:   now.Add(-s.policy.MobilityWindow),
	})
	if err != nil {
		return Assessment{}, autherr.Storage(op, err)
	}
	ips := make(map[string]struct{}, len(recent)+1)
	for _, r := range recent {
		if r.IPAddress != "" {
			ips[r.IPAddress] = struct{}{}
		}
	}
	if ipAddress != "" {
		ips[ipAddress] = struct{}{}
	}
	a.ImprobableMobility = len(ips) >= s.policy.MobilityIPCount

	return a, nil
}
