package audit

import "time"

// Record is one login-related event. Only the session-close fields and the
// suspicion flag change after the record is written.
type Record struct {
	ID             int64       `json:"id"`
	UserID         *string     `json:"user_id,omitempty"`
	EmailAttempted string      `json:"email_attempted"`
	IPAddress      string      `json:"ip_address"`
	UserAgent      string      `json:"user_agent"`
	Browser        string      `json:"browser,omitempty"`
	OS             string      `json:"os,omitempty"`
	Device         string      `json:"device,omitempty"`
	Result         LoginResult `json:"result"`
	AttemptedAt    time.Time   `json:"attempted_at"`
	SessionID      *string     `json:"session_id,omitempty"`

	SessionEndAt           *time.Time `json:"session_end_at,omitempty"`
	SessionDurationMinutes *int       `json:"session_duration_minutes,omitempty"`
	SessionEndReason       string     `json:"session_end_reason,omitempty"`

	IsSuspicious     bool   `json:"is_suspicious"`
	SuspiciousReason string `json:"suspicious_reason,omitempty"`

	// Detail is a free-form annotation such as a logout or admin reason.
	Detail string `json:"detail,omitempty"`
}

// IsOpenSession reports whether r started a session that has not been closed.
func (r Record) IsOpenSession() bool {
	return r.Result == ResultSuccess && r.SessionID != nil && r.SessionEndAt == nil
}

// IsActiveAt reports whether r is an open session younger than maxAge at now.
func (r Record) IsActiveAt(now time.Time, maxAge time.Duration) bool {
	return r.IsOpenSession() && !r.AttemptedAt.Before(now.Add(-maxAge))
}

// SessionMinutes is the whole number of minutes between start and end.
func SessionMinutes(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// Attempt is the input to RecordAttempt.
type Attempt struct {
	UserID    *string
	Email     string
	Result    LoginResult
	IPAddress string
	UserAgent string
	SessionID *string
	Detail    string
}

// Filter selects records. Zero values do not constrain the query.
//
// Since is inclusive and Until exclusive. OpenSessions restricts to success
// records with a session id and no end time. AfterID keeps only records
// written after the record with that id.
type Filter struct {
	UserID         *string
	Email          string
	IPAddress      string
	SessionID      string
	Results        []LoginResult
	ExcludeResults []LoginResult
	Since          time.Time
	Until          time.Time
	OpenSessions   bool
	SuspiciousOnly bool
	AfterID        int64
	Ascending      bool
	Limit          int
	Offset         int
}

// Page is one page of records plus the unpaged total.
type Page struct {
	Records    []Record `json:"records"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

// ResultCount pairs a result with how often it occurred.
type ResultCount struct {
	Result LoginResult `json:"result"`
	Count  int         `json:"count"`
}

// Statistics aggregates login activity over [From, To).
type Statistics struct {
	From               time.Time           `json:"from"`
	To                 time.Time           `json:"to"`
	TotalAttempts      int                 `json:"total_attempts"`
	SuccessfulLogins   int                 `json:"successful_logins"`
	FailedAttempts     int                 `json:"failed_attempts"`
	UniqueUsers        int                 `json:"unique_users"`
	UniqueIPs          int                 `json:"unique_ips"`
	SuspiciousAttempts int                 `json:"suspicious_attempts"`
	SuccessRate        float64             `json:"success_rate"`
	ByResult           map[LoginResult]int `json:"by_result"`
	ByHour             [24]int             `json:"by_hour"`
	TopFailureReasons  []ResultCount       `json:"top_failure_reasons"`
}

// IPUsage summarizes one source address for a user.
type IPUsage struct {
	IPAddress string    `json:"ip_address"`
	Count     int       `json:"count"`
	LastUsed  time.Time `json:"last_used"`
}
