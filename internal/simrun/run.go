package simrun

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hsphere/collision/internal/cellgrid"
	"github.com/hsphere/collision/internal/engine"
	"github.com/hsphere/collision/internal/simconfig"
	"github.com/hsphere/collision/internal/simlog"
)

// cellSize is the side length of a grid cell: large enough to hold the
// largest particle diameters expected in a dense hard-sphere pack without
// forcing an excessive cell count.
const cellSize = 2.0

// Run owns one simulation's lifetime: the loaded state, the built grid and
// dispatcher, and the periodic save/log schedule. Each Run is tagged with a
// google/uuid identity so its log lines are distinguishable from any other
// run's; the identity is not written into the saved snapshots.
type Run struct {
	ID     uuid.UUID
	NDims  int
	Cfg    *simconfig.Config
	Log    simlog.Logger
	Stats  *StatsLogger
	State  *State
	Sim    *engine.Simulation
}

// New loads the initial state, builds the grid, and schedules the initial
// event set.
func New(cfg *simconfig.Config, outputRoot string) (*Run, error) {
	id := uuid.New()
	log := simlog.New(id, cfg.Debug)
	ndims := cfg.NDims

	state, err := LoadInitial(ndims, cfg.InputDirectory)
	if err != nil {
		return nil, fmt.Errorf("loading initial state: %w", err)
	}

	grid := cellgrid.BuildGrid(ndims, state.Lengths, cellSize)
	for _, p := range state.Particles {
		grid.AssignParticle(p)
	}

	params := cellgrid.Params{
		NDims:           ndims,
		TMax:            cfg.TMax,
		RestCoefPP:      cfg.RestCoefPP,
		RestCoefPW:      cfg.RestCoefPW,
		DtZeroThreshold: cfg.NewtonDtZeroThreshold,
	}
	sim, err := engine.New(ndims, state.Particles, grid, params)
	if err != nil {
		return nil, fmt.Errorf("scheduling initial events: %w", err)
	}

	stats, err := NewStatsLogger(ndims, outputRoot, log)
	if err != nil {
		return nil, fmt.Errorf("preparing log directory: %w", err)
	}

	log.Infof("run %s initialised: %d particles, %d cells", id, len(state.Particles), len(grid.Cells))
	return &Run{ID: id, NDims: ndims, Cfg: cfg, Log: log, Stats: stats, State: state, Sim: sim}, nil
}

// Loop drives the dispatcher to completion: it stops when the next event
// exceeds tmax or the wall-clock budget is exhausted, saving and logging on
// the configured rates. outputRoot is the directory snapshots and logs are
// written under.
func (r *Run) Loop(outputRoot string) error {
	start := time.Now()
	cfg := r.Cfg
	saveNext := r.State.Time + cfg.SaveRate
	logNext := r.State.Time + cfg.LogRate

	r.Stats.LogAll(r.State.Time, r.State.Particles, r.Sim.Grid.Cells)
	if err := Save(r.NDims, outputRoot, r.State); err != nil {
		r.Log.Warnf("skipping initial save: %v", err)
	}

	for {
		t, err := r.Sim.ProcessNext()
		if err != nil {
			return fmt.Errorf("processing event: %w", err)
		}
		r.State.Iter++
		if t > cfg.TMax {
			r.Log.Infof("time limit exceeded at iter %d", r.State.Iter)
			return nil
		}
		r.State.Time = t
		r.Log.SetProgress(r.State.Iter, t)

		if time.Since(start).Seconds() > cfg.WTMax {
			r.Log.Infof("wall time limit exceeded at iter %d", r.State.Iter)
			return nil
		}

		if t > logNext {
			for _, p := range r.State.Particles {
				p.Advance(t)
			}
			r.Stats.LogAll(t, r.State.Particles, r.Sim.Grid.Cells)
			logNext += cfg.LogRate
		}
		if t > saveNext {
			for _, p := range r.State.Particles {
				p.Advance(t)
			}
			if err := Save(r.NDims, outputRoot, r.State); err != nil {
				r.Log.Warnf("skipping save at iter %d: %v", r.State.Iter, err)
			}
			saveNext += cfg.SaveRate
		}
	}
}
