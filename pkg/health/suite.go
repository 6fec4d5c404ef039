package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sbuerk/dbdoctor/internal/output"
	"github.com/sbuerk/dbdoctor/pkg/schema"
)

// CheckStatus is the recorded terminal state of one check within a session.
type CheckStatus struct {
	Identifier string
	Result     Result
	// Err is set when the check could not be evaluated because the schema
	// catalog lacks a required role. Such a check counts as aborted.
	Err error
}

// Results aggregates the session's per-check statuses.
type Results []CheckStatus

// Aborted reports whether any check ended without full resolution.
func (r Results) Aborted() bool {
	for _, status := range r {
		if status.Result == ResultAborted {
			return true
		}
	}
	return false
}

// Suite runs registered checks in order. Registration order is fixed at
// composition time; units hold no state across invocations.
type Suite struct {
	term   *output.Terminal
	runner *Runner
	checks []Check
}

func NewSuite(term *output.Terminal, checks ...Check) *Suite {
	return &Suite{term: term, runner: NewRunner(term), checks: checks}
}

// Checks returns the registered checks in order.
func (s *Suite) Checks() []Check {
	return s.checks
}

// Run drives the session. A non-empty resume token skips checks until the
// matching identifier. One check's abort never short-circuits the rest, and a
// check whose schema roles are missing is reported and skipped; only storage
// failures end the session, because no invariant can be reasoned about over
// an unreliable store.
func (s *Suite) Run(ctx context.Context, mode Mode, resumeToken string) (Results, error) {
	runID := uuid.NewString()
	log.Infow("starting health check session", "run", runID, "mode", mode.String(), "checks", len(s.checks))

	resuming := resumeToken != ""
	var results Results
	for _, check := range s.checks {
		if resuming {
			if check.Identifier() != resumeToken {
				log.Debugw("skipping check before resume marker", "run", runID, "check", check.Identifier())
				continue
			}
			resuming = false
		}

		result, err := s.runner.Run(ctx, check, mode)
		if err != nil {
			var incomplete *schema.IncompleteError
			if errors.As(err, &incomplete) {
				s.term.Warning("Cannot evaluate %s: %v", check.Identifier(), incomplete)
				results = append(results, CheckStatus{Identifier: check.Identifier(), Result: ResultAborted, Err: err})
				continue
			}
			return results, err
		}
		log.Infow("check finished", "run", runID, "check", check.Identifier(), "result", result.String())
		results = append(results, CheckStatus{Identifier: check.Identifier(), Result: result})
	}

	if resuming {
		return results, fmt.Errorf("unknown resume marker %q", resumeToken)
	}
	return results, nil
}
