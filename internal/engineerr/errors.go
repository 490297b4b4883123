// Package engineerr defines the typed error kinds raised across the
// narrative engine, grounded on the classify-then-map idiom of the
// teacher's pkg/aierrors package: typed values instead of ad-hoc string
// matching, with a classifier that maps a raw error to a user-facing
// message without ever leaking a provider payload.
package engineerr

import (
	"errors"
	"fmt"
)

// NotFoundKind identifies which entity was missing.
type NotFoundKind string

const (
	NotFoundGame   NotFoundKind = "game"
	NotFoundBranch NotFoundKind = "branch"
	NotFoundRound  NotFoundKind = "round"
	NotFoundTag    NotFoundKind = "tag"
)

// NotFound is raised by Store lookups for a missing entity.
type NotFound struct {
	Kind NotFoundKind
	Key  string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// UserMessage renders a friendly "找不到…" message, never the Go error text.
func (e *NotFound) UserMessage() string {
	switch e.Kind {
	case NotFoundGame:
		return "找不到该游戏"
	case NotFoundBranch:
		return "找不到该分支"
	case NotFoundRound:
		return "找不到该回合"
	case NotFoundTag:
		return "找不到该标签"
	default:
		return "未找到"
	}
}

// ConflictKind identifies the uniqueness/race rule that was violated.
type ConflictKind string

const (
	ConflictBranchName  ConflictKind = "branch_name"
	ConflictTagName     ConflictKind = "tag_name"
	ConflictChannelBusy ConflictKind = "channel_busy"
)

// Conflict is raised when a write violates a uniqueness or binding rule.
type Conflict struct {
	Kind ConflictKind
	Name string
}

func (e *Conflict) Error() string {
	return fmt.Sprintf("conflict (%s): %s", e.Kind, e.Name)
}

func (e *Conflict) UserMessage() string {
	switch e.Kind {
	case ConflictBranchName, ConflictTagName:
		return fmt.Sprintf("名称已被占用: %s", e.Name)
	case ConflictChannelBusy:
		return "该频道已绑定一局游戏"
	default:
		return "操作冲突"
	}
}

// Validation is raised by CommandSurface/LLMBroker input checks.
type Validation struct {
	Field string
	Hint  string
}

func (e *Validation) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Hint)
}

func (e *Validation) UserMessage() string {
	return fmt.Sprintf("%s 无效: %s", e.Field, e.Hint)
}

// Permission is raised by CommandSurface when the caller lacks the
// required eligibility tier.
type Permission struct {
	Requirement string
}

func (e *Permission) Error() string {
	return fmt.Sprintf("permission denied, requires: %s", e.Requirement)
}

func (e *Permission) UserMessage() string {
	return fmt.Sprintf("权限不足: 需要 %s", e.Requirement)
}

// TipChanged is raised by GameEngine.tally_and_advance when the branch
// tip moved during the LLM call; this is a silent skip, not a failure.
type TipChanged struct {
	GameID    string
	OldTip    int64
	NewTip    int64
}

func (e *TipChanged) Error() string {
	return fmt.Sprintf("tip changed for game %s: %d -> %d", e.GameID, e.OldTip, e.NewTip)
}

func (e *TipChanged) UserMessage() string {
	return "状态已推进, 跳过本次结算"
}

// LLMErrorClass distinguishes retryable from fatal LLM failures.
type LLMErrorClass string

const (
	LLMTransient LLMErrorClass = "transient"
	LLMFatal     LLMErrorClass = "fatal"
)

// LLMError wraps a provider failure, classified for retry policy.
type LLMError struct {
	Class LLMErrorClass
	Err   error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error (%s): %v", e.Class, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

func (e *LLMError) UserMessage() string {
	return "GM 没有回应"
}

// Retryable reports whether err (or one of its wrapped causes) should be
// retried by LLMClient's backoff loop.
func Retryable(err error) bool {
	var le *LLMError
	if errors.As(err, &le) {
		return le.Class == LLMTransient
	}
	return false
}

// Cancelled marks an operation aborted by context cancellation.
type Cancelled struct {
	Op string
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("cancelled: %s", e.Op)
}

// StorageIO wraps a recoverable disk write/read failure.
type StorageIO struct {
	Op  string
	Err error
}

func (e *StorageIO) Error() string {
	return fmt.Sprintf("storage io failed (%s): %v", e.Op, e.Err)
}

func (e *StorageIO) Unwrap() error {
	return e.Err
}

// DecryptionFailure marks a preset whose api_key could not be decrypted;
// the caller must omit it from listings rather than crash.
type DecryptionFailure struct {
	PresetName string
	Err        error
}

func (e *DecryptionFailure) Error() string {
	return fmt.Sprintf("decryption failed for preset %s: %v", e.PresetName, e.Err)
}

func (e *DecryptionFailure) Unwrap() error {
	return e.Err
}

// UserMessager is implemented by NotFound, Conflict, Validation,
// Permission, TipChanged and LLMError (Cancelled, StorageIO and
// DecryptionFailure do not implement it); CommandSurface and
// ReactionRouter use it to render a friendly line without ever falling
// back to err.Error().
type UserMessager interface {
	UserMessage() string
}

// UserMessage extracts the friendliest available message for err,
// falling back to a generic line for unrecognized error kinds.
func UserMessage(err error) string {
	var um UserMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return "发生未知错误"
}
