package agentsvc

import (
	"github.com/uber-go/tally"
)

// Metrics tracks the outcomes of the provisioning API endpoints.
type Metrics struct {
	Create         tally.Counter
	CreateFail     tally.Counter
	Cancel         tally.Counter
	CancelNotFound tally.Counter
}

// NewMetrics returns a new Metrics struct rooted at the given tally.Scope.
func NewMetrics(scope tally.Scope) *Metrics {
	apiScope := scope.SubScope("api")

	return &Metrics{
		Create:         apiScope.Counter("create"),
		CreateFail:     apiScope.Counter("create_fail"),
		Cancel:         apiScope.Counter("cancel"),
		CancelNotFound: apiScope.Counter("cancel_not_found"),
	}
}
