package budget

import "sync"

// LimitEnforcer wraps the per-target limits (file count, bytes per
// file, bytes per target) plus a reference to the shared run budget. It
// is owned by a single worker — per-target
// enforcers are never shared across goroutines, only the RunByteBudget
// is.
type LimitEnforcer struct {
	mu sync.Mutex

	filesSeen int
	bytesSeen int64

	limitFiles        int
	maxBytesPerTarget int64
	maxBytesPerFile   int64

	runBudget *RunByteBudget
}

// NewLimitEnforcer builds an enforcer for one target. limitFiles <= 0 or
// maxBytes* <= 0 mean "no limit" for that dimension.
func NewLimitEnforcer(limitFiles int, maxBytesPerTarget, maxBytesPerFile int64, runBudget *RunByteBudget) *LimitEnforcer {
	return &LimitEnforcer{
		limitFiles:        limitFiles,
		maxBytesPerTarget: maxBytesPerTarget,
		maxBytesPerFile:   maxBytesPerFile,
		runBudget:         runBudget,
	}
}

// StartFile accounts for the start of a new file against the
// files-per-target limit.
func (e *LimitEnforcer) StartFile() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filesSeen++
	if e.limitFiles > 0 && e.filesSeen > e.limitFiles {
		return &LimitExceededError{LimitType: LimitFilesPerTarget, Limit: int64(e.limitFiles), Observed: int64(e.filesSeen)}
	}
	return nil
}

// CheckSizeHint validates a known-or-expected file size against both the
// per-file and per-target byte caps, and the shared run budget, before
// any bytes are transferred.
func (e *LimitEnforcer) CheckSizeHint(sizeHint int64) error {
	e.mu.Lock()
	if e.maxBytesPerFile > 0 && sizeHint > e.maxBytesPerFile {
		e.mu.Unlock()
		return &LimitExceededError{LimitType: LimitBytesPerFile, Limit: e.maxBytesPerFile, Observed: sizeHint}
	}
	if e.maxBytesPerTarget > 0 && e.bytesSeen+sizeHint > e.maxBytesPerTarget {
		e.mu.Unlock()
		return &LimitExceededError{LimitType: LimitBytesPerTarget, Limit: e.maxBytesPerTarget, Observed: e.bytesSeen + sizeHint}
	}
	e.mu.Unlock()
	if e.runBudget != nil {
		return e.runBudget.CheckSizeHint(sizeHint)
	}
	return nil
}

// AddBytes accounts for n newly-written bytes against the per-file (via
// fileBytesSoFar), per-target, and run budgets.
// fileBytesSoFar is the cumulative count for the current file, used to
// evaluate the per-file cap independent of other files already counted
// toward the target.
func (e *LimitEnforcer) AddBytes(n int64, fileBytesSoFar int64) error {
	if e.maxBytesPerFile > 0 && fileBytesSoFar > e.maxBytesPerFile {
		return &LimitExceededError{LimitType: LimitBytesPerFile, Limit: e.maxBytesPerFile, Observed: fileBytesSoFar}
	}
	e.mu.Lock()
	e.bytesSeen += n
	bytesSeen := e.bytesSeen
	e.mu.Unlock()
	if e.maxBytesPerTarget > 0 && bytesSeen > e.maxBytesPerTarget {
		return &LimitExceededError{LimitType: LimitBytesPerTarget, Limit: e.maxBytesPerTarget, Observed: bytesSeen}
	}
	if e.runBudget != nil {
		return e.runBudget.Add(n)
	}
	return nil
}

// BytesSeen returns bytes accounted so far for this target.
func (e *LimitEnforcer) BytesSeen() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bytesSeen
}
