package engine

import (
	"fmt"
	"time"

	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/sourcegraph/conc/panics"
)

// Phase names used in logs, warnings and summary durations
const (
	PhaseNormalize           = "normalize"
	PhaseLink                = "link"
	PhaseProductAggregation  = "product aggregation"
	PhaseCustomerAggregation = "customer aggregation"
	PhaseExtraDetails        = "extra details"
	PhaseAmbiguity           = "ambiguity analysis"
)

// phaseRunner executes the post-linking phases. A phase that panics is
// logged and reported as a warning; the caller keeps its previous value.
type phaseRunner struct {
	logger    logger.Logger
	durations map[string]time.Duration
	warnings  []Warning
	degraded  []string
}

func newPhaseRunner(log logger.Logger) *phaseRunner {
	return &phaseRunner{
		logger:    log,
		durations: make(map[string]time.Duration),
	}
}

// run executes fn and reports whether it completed
func (pr *phaseRunner) run(phase string, code errors.ErrorCode, fn func()) bool {
	start := time.Now()
	var pc panics.Catcher
	pc.Try(fn)
	pr.durations[phase] += time.Since(start)

	recovered := pc.Recovered()
	if recovered == nil {
		return true
	}

	err := errors.NormalizationError(code, phase, recovered.AsError()).
		WithContext("panic", fmt.Sprint(recovered.Value))
	pr.logger.WithFields(logger.Fields{
		"phase": phase,
		"code":  code,
	}).WithError(err).Warn("Phase failed, keeping previous values")

	pr.warnings = append(pr.warnings, WarningFromError(phase, err))
	pr.degraded = append(pr.degraded, phase)
	return false
}
