package models

// RunStage represents the lifecycle state of a workflow instance.
type RunStage string

const (
	StageIdle         RunStage = "idle"
	StageScheduled    RunStage = "scheduled"
	StageInitializing RunStage = "initializing"
	StageExecuting    RunStage = "executing"
	StageFinished     RunStage = "finished"
	StageFailed       RunStage = "failed"
)

// Terminal reports whether the stage ends a lifecycle. Terminal stages make
// the instance eligible for rescheduling.
func (s RunStage) Terminal() bool {
	return s == StageFinished || s == StageFailed
}

// Running reports whether the instance currently owns an in-flight run.
func (s RunStage) Running() bool {
	return s == StageInitializing || s == StageExecuting
}
