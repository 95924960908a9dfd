package wipe

import (
	"errors"
	"fmt"
	"time"
)

// Stage шаг конвейера затирания.
type Stage string

const (
	StageOverwritePass1 Stage = "overwrite-pass-1"
	StageOverwritePass2 Stage = "overwrite-pass-2"
	StageVerify         Stage = "verify-overwrite"
	StagePartition      Stage = "partition"
	StageWaitPartition  Stage = "wait-for-partition-node"
	StageMakeFilesystem Stage = "make-filesystem"
)

// Stages lists the pipeline in execution order.
var Stages = []Stage{
	StageOverwritePass1,
	StageOverwritePass2,
	StageVerify,
	StagePartition,
	StageWaitPartition,
	StageMakeFilesystem,
}

// ErrDeviceNotReady is returned when the partition node never becomes openable.
var ErrDeviceNotReady = errors.New("device not ready")

// StageResult результат одного шага
type StageResult struct {
	Stage     Stage         `json:"stage"`
	Command   string        `json:"command,omitempty"`
	Args      []string      `json:"args,omitempty"`
	ExitCode  int           `json:"exit_code"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// StageError ошибка шага; Message попадает в таблицу статуса.
type StageError struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
