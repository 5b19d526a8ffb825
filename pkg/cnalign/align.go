package cnalign

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/agorelick/CNalign/pkg/mip"
)

// ErrNoFeasibleAssignment reports that no copy-number assignment satisfies
// the constraints for any ploidy and purity in the configured ranges.
var ErrNoFeasibleAssignment = stderrors.New("no feasible copy-number assignment in the configured ploidy/purity ranges")

// RunResult is the outcome of one alignment run.
type RunResult struct {
	// Table is the extracted solution report, best solution first.
	Table *SolutionTable
	// Problem gives structured access to the model and its variables for
	// callers that want more than the table.
	Problem *Problem
	// Raw is the engine result the table was extracted from.
	Raw *mip.Result
}

// Align runs one full alignment: validate, build, compose the objective,
// solve under stagnation control, and extract the pool. Solutions are
// extracted and returned for every termination reason that left a feasible
// incumbent, including cancellation of ctx mid-search; in that case both
// the result and ctx's error are returned.
func Align(ctx context.Context, table *ObservationTable, cfg Config, engine mip.Engine) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	logParameters(table, cfg)

	p, err := BuildProblem(table, cfg)
	if err != nil {
		return nil, err
	}
	ComposeObjectives(p)

	ctrl := NewStagnationController(time.Duration(cfg.StagnationTimeout))
	opts := []mip.SolveOption{
		mip.WithPoolSize(cfg.SolCount),
		mip.WithProgress(ctrl.Observe),
		mip.WithWorkers(cfg.Workers),
	}
	if cfg.LicenseFile != "" {
		cred, err := ReadCredentials(cfg.LicenseFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mip.WithCredentials(cred))
	}

	res, solveErr := engine.Solve(ctx, p.Model, opts...)
	if solveErr != nil && res == nil {
		if stderrors.Is(solveErr, mip.ErrInfeasible) {
			return nil, fmt.Errorf("%w: %w", ErrNoFeasibleAssignment, solveErr)
		}
		return nil, errors.Wrap(solveErr, "solving alignment model")
	}

	best := res.Best()
	if cfg.Obj2ClonalOnly && best.Value(p.NClonal) < 0.5 {
		log.Warn("no segment reached clonality; with obj2_clonalonly the error objective is identically zero")
	}

	out, err := ExtractSolutions(p, res)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"solutions": len(res.Solutions),
		"n_clonal":  best.Value(p.NClonal),
	}).Info("alignment finished")
	return &RunResult{Table: out, Problem: p, Raw: res}, solveErr
}

// logParameters emits the run's parameter report before solving.
func logParameters(table *ObservationTable, cfg Config) {
	log.WithFields(log.Fields{
		"samples":            table.NumSamples(),
		"segments":           table.NumSegments(),
		"ploidy":             fmt.Sprintf("[%g,%g]", cfg.MinPloidy, cfg.MaxPloidy),
		"purity":             fmt.Sprintf("[%g,%g]", cfg.MinPurity, cfg.MaxPurity),
		"delta_tcn":          fmt.Sprintf("int=%g avg=%g avgint=%g", cfg.DeltaTCNToInt, cfg.DeltaTCNToAvg, cfg.DeltaTCNAvgToInt),
		"delta_mcn":          fmt.Sprintf("int=%g avg=%g avgint=%g", cfg.DeltaMCNToInt, cfg.DeltaMCNToAvg, cfg.DeltaMCNAvgToInt),
		"mcn_weight":         cfg.MCNWeight,
		"rho":                cfg.Rho,
		"min_aligned_seg_mb": cfg.MinAlignedSegMb,
		"max_homdel_mb":      cfg.MaxHomdelMb,
		"obj2_clonalonly":    cfg.Obj2ClonalOnly,
		"stagnation_timeout": time.Duration(cfg.StagnationTimeout),
		"sol_count":          cfg.SolCount,
	}).Info("starting copy-number alignment")
}
