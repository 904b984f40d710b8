package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that searches still resolve, with reduced capability.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckRecovering indicates a browser breaker probing a relaunch.
	CheckRecovering CheckResult = "recovering"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store   StorePinger
	browser BrowserState
}

// New creates a Service. browser can be nil.
func New(store StorePinger, browser BrowserState) *Service {
	return &Service{store: store, browser: browser}
}

// Check runs health checks against all components. Any failing component
// degrades the service; caching and scraping both fail soft.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	if s.browser != nil {
		switch s.browser.State() {
		case "open":
			checks["browser"] = CheckError
		case "half-open":
			checks["browser"] = CheckRecovering
		default:
			checks["browser"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
