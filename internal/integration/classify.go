package integration

import (
	"net/http"

	"github.com/nerrad567/ponbike-core/internal/ponapi"
)

// Outcome is the classification of a startup refresh.
type Outcome int

const (
	// OutcomeProceed means the refresh succeeded.
	OutcomeProceed Outcome = iota
	// OutcomeReauth means the credentials were rejected.
	OutcomeReauth
	// OutcomeFailSetup means the setup cannot succeed without a config change.
	OutcomeFailSetup
	// OutcomeNotReady means the setup should be retried later.
	OutcomeNotReady
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeReauth:
		return "reauth"
	case OutcomeFailSetup:
		return "fail_setup"
	case OutcomeNotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for o, nil for OutcomeProceed.
func (o Outcome) Err() error {
	switch o {
	case OutcomeProceed:
		return nil
	case OutcomeReauth:
		return ErrReauthRequired
	case OutcomeFailSetup:
		return ErrSetupFailed
	default:
		return ErrNotReady
	}
}

// Classify maps a refresh error to an Outcome by the vendor status code in
// its chain: 401 and 403 ask for re-authorization, 404 fails setup, and
// anything else (other statuses, transport errors, no token) is retryable.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeProceed
	}

	status, ok := ponapi.StatusCode(err)
	if !ok {
		return OutcomeNotReady
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return OutcomeReauth
	case http.StatusNotFound:
		return OutcomeFailSetup
	default:
		return OutcomeNotReady
	}
}
