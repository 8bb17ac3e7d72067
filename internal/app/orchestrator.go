package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"winemap/internal/adapters/observability"
	"winemap/internal/domain"
)

type OperationKind string

const (
	OpSave   OperationKind = "save"
	OpLoad   OperationKind = "load"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

type Phase string

const (
	PhaseSaving        Phase = "saving"
	PhaseLoading       Phase = "loading_reports"
	PhaseSaveSuccess   Phase = "save_success"
	PhaseSaveError     Phase = "save_error"
	PhaseReportsLoaded Phase = "reports_loaded"
	PhaseLoadError     Phase = "load_error"
	PhaseUpdateSuccess Phase = "update_success"
	PhaseUpdateError   Phase = "update_error"
	PhaseDeleteSuccess Phase = "delete_success"
	PhaseDeleteError   Phase = "delete_error"
)

// OperationState is a snapshot of one asynchronous repository operation.
// Reports is populated only in the reports_loaded phase; Err only in the
// *_error phases.
type OperationState struct {
	ID      string
	Kind    OperationKind
	Phase   Phase
	Reports []domain.Report
	Err     error
	Done    bool
}

type operation struct {
	state OperationState
	done  chan struct{}
}

// Orchestrator wraps a ReportRepository in observable asynchronous state
// machines. Each call gets its own state cell keyed by the returned
// operation id, so concurrent operations never clobber one another;
// LastState remains for callers that only want the most recent outcome.
type Orchestrator struct {
	repo   domain.ReportRepository
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	ops  map[string]*operation
	last OperationState
}

func NewOrchestrator(repo domain.ReportRepository, workers int64) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		repo:   repo,
		sem:    semaphore.NewWeighted(workers),
		ctx:    ctx,
		cancel: cancel,
		ops:    make(map[string]*operation),
	}
}

func (o *Orchestrator) SaveReport(d domain.ReportDraft) string {
	return o.launch(OpSave, PhaseSaving, PhaseSaveSuccess, PhaseSaveError,
		func(ctx context.Context) ([]domain.Report, error) {
			return nil, o.repo.SaveReport(ctx, d)
		})
}

func (o *Orchestrator) LoadReportsForUser(userID string) string {
	return o.launch(OpLoad, PhaseLoading, PhaseReportsLoaded, PhaseLoadError,
		func(ctx context.Context) ([]domain.Report, error) {
			return o.repo.GetReportsForUser(ctx, userID)
		})
}

func (o *Orchestrator) LoadAllReports() string {
	return o.launch(OpLoad, PhaseLoading, PhaseReportsLoaded, PhaseLoadError,
		func(ctx context.Context) ([]domain.Report, error) {
			return o.repo.GetAllReports(ctx)
		})
}

func (o *Orchestrator) UpdateReport(id string, p domain.ReportPatch) string {
	return o.launch(OpUpdate, PhaseSaving, PhaseUpdateSuccess, PhaseUpdateError,
		func(ctx context.Context) ([]domain.Report, error) {
			return nil, o.repo.UpdateReport(ctx, id, p)
		})
}

func (o *Orchestrator) DeleteReport(id string) string {
	return o.launch(OpDelete, PhaseSaving, PhaseDeleteSuccess, PhaseDeleteError,
		func(ctx context.Context) ([]domain.Report, error) {
			return nil, o.repo.DeleteReport(ctx, id)
		})
}

func (o *Orchestrator) launch(kind OperationKind, transient, ok, fail Phase,
	fn func(context.Context) ([]domain.Report, error)) string {

	id := uuid.NewString()
	op := &operation{
		state: OperationState{ID: id, Kind: kind, Phase: transient},
		done:  make(chan struct{}),
	}
	o.mu.Lock()
	o.ops[id] = op
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.sem.Acquire(o.ctx, 1); err != nil {
			o.finish(op, fail, nil, err)
			return
		}
		defer o.sem.Release(1)

		reports, err := fn(o.ctx)
		if err != nil {
			o.finish(op, fail, nil, err)
			return
		}
		o.finish(op, ok, reports, nil)
	}()
	return id
}

// finish records the terminal state. Repository errors are captured here,
// never rethrown.
func (o *Orchestrator) finish(op *operation, phase Phase, reports []domain.Report, err error) {
	o.mu.Lock()
	op.state.Phase = phase
	op.state.Reports = reports
	op.state.Err = err
	op.state.Done = true
	o.last = op.state
	o.mu.Unlock()
	observability.ObserveOperation(string(op.state.Kind), string(phase))
	close(op.done)
}

// State returns the current snapshot for an operation id. A terminal
// snapshot is handed over once: observing a Done state removes the
// operation, so completed work does not accumulate for the process
// lifetime. In-flight operations can be polled freely.
func (o *Orchestrator) State(id string) (OperationState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	op, ok := o.ops[id]
	if !ok {
		return OperationState{}, false
	}
	if op.state.Done {
		delete(o.ops, id)
	}
	return op.state, true
}

// LastState returns the most recently completed operation's state.
// With concurrent operations this is last-completed-wins; per-operation
// state is the authoritative view.
func (o *Orchestrator) LastState() OperationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Wait blocks until the operation reaches a terminal phase or ctx is done.
// Like State, delivering the terminal state releases the operation's entry.
func (o *Orchestrator) Wait(ctx context.Context, id string) (OperationState, error) {
	o.mu.Lock()
	op, ok := o.ops[id]
	o.mu.Unlock()
	if !ok {
		return OperationState{}, domain.ErrNotFound
	}
	select {
	case <-op.done:
		o.mu.Lock()
		st := op.state
		delete(o.ops, id)
		o.mu.Unlock()
		return st, nil
	case <-ctx.Done():
		return OperationState{}, ctx.Err()
	}
}

// Close cancels in-flight operations and waits for their goroutines.
// Cancelled work performs no partial-completion cleanup.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}
