package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Kind classifies a pipeline failure so callers can tell the quality gate
// apart from infrastructure faults without string matching.
type Kind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown Kind = iota
	// KindIO covers unreadable sources and unwritable destinations.
	KindIO
	// KindSchema covers malformed tabular input.
	KindSchema
	// KindModel covers fit/predict failures inside an estimator.
	KindModel
	// KindInsufficientPerformance is the business gate: no candidate scored high enough.
	KindInsufficientPerformance
	// KindSerialization covers artifact encode/decode failures.
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSchema:
		return "schema"
	case KindModel:
		return "model"
	case KindInsufficientPerformance:
		return "insufficient_performance"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// IOError は入出力の失敗（ファイルが存在しない、書き込み不可など）を表します。
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("scitrain: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *IOError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("type", "IOError")
}

// NewIOError は新しいIOErrorを作成し、スタックトレースを付与します。
func NewIOError(op, path string, err error) error {
	return errors.WithStack(&IOError{Op: op, Path: path, Err: err})
}

// SchemaError は表形式データの構造が期待と異なる場合のエラーです。
type SchemaError struct {
	Source string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("scitrain: schema: %s", e.Reason)
	}
	return fmt.Sprintf("scitrain: schema: %s: %s", e.Source, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Str("reason", e.Reason).
		Str("type", "SchemaError")
}

// NewSchemaError は新しいSchemaErrorを作成し、スタックトレースを付与します。
func NewSchemaError(source, reason string) error {
	return errors.WithStack(&SchemaError{Source: source, Reason: reason})
}

// InsufficientPerformanceError は最良候補のスコアが最低基準に届かなかったことを示します。
// 何も永続化されていないことを意味します。
type InsufficientPerformanceError struct {
	BestModel string
	BestScore float64
	Threshold float64
}

func (e *InsufficientPerformanceError) Error() string {
	return fmt.Sprintf("scitrain: no best model found: %s scored %.4f, below minimum %.2f",
		e.BestModel, e.BestScore, e.Threshold)
}

// Is lets errors.Is(err, ErrInsufficientPerformance) match.
func (e *InsufficientPerformanceError) Is(target error) bool {
	return target == ErrInsufficientPerformance
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InsufficientPerformanceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("best_model", e.BestModel).
		Float64("best_score", e.BestScore).
		Float64("threshold", e.Threshold).
		Str("type", "InsufficientPerformanceError")
}

// NewInsufficientPerformanceError は新しいInsufficientPerformanceErrorを作成します。
func NewInsufficientPerformanceError(bestModel string, bestScore, threshold float64) error {
	return errors.WithStack(&InsufficientPerformanceError{
		BestModel: bestModel,
		BestScore: bestScore,
		Threshold: threshold,
	})
}

// SerializationError はアーティファクトのエンコード・デコードの失敗です。
type SerializationError struct {
	Op   string
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("scitrain: %s %q: serialization failed: %v", e.Op, e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SerializationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("type", "SerializationError")
}

// NewSerializationError は新しいSerializationErrorを作成し、スタックトレースを付与します。
func NewSerializationError(op, path string, err error) error {
	return errors.WithStack(&SerializationError{Op: op, Path: path, Err: err})
}

// StageError wraps a failure with the pipeline stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("scitrain: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *StageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Str("kind", KindOf(e.Err).String()).
		Str("type", "StageError")
}

// NewStageError wraps err with the stage name. A nil err stays nil.
func NewStageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&StageError{Stage: stage, Err: err})
}

// KindOf reports the taxonomy kind of the first typed error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		perfErr   *InsufficientPerformanceError
		ioErr     *IOError
		schemaErr *SchemaError
		serErr    *SerializationError
		modelErr  *ModelError
		panicErr  *PanicError
	)
	switch {
	case errors.As(err, &perfErr):
		return KindInsufficientPerformance
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.As(err, &serErr):
		return KindSerialization
	case errors.As(err, &ioErr):
		return KindIO
	case errors.As(err, &modelErr), errors.As(err, &panicErr):
		return KindModel
	}
	return KindUnknown
}
