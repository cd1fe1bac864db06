package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError はワーカー内で回収された panic を表します。
//
// グリッドサーチやステージ実行中に推定器が panic しても、プロセスを落とさず
// このエラーとして呼び出し元へ返します。KindOf では KindModel に分類されます。
type PanicError struct {
	Operation  string
	Value      interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// MarshalZerologObject はzerologのイベントに panic の情報を追加します。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("panic", fmt.Sprint(e.Value)).
		Str("stack", e.StackTrace)
}

// NewPanicError captures the current goroutine stack.
func NewPanicError(operation string, value interface{}) *PanicError {
	return &PanicError{
		Operation:  operation,
		Value:      value,
		StackTrace: string(debug.Stack()),
	}
}

// Recover は defer で使い、panic を *err に変換します。
//
//	func (s *Search) fitOne(...) (err error) {
//	    defer errors.Recover(&err, "GridSearchCV.fit")
//	    ...
//	}
//
// すでにエラーが設定されている場合は、そのエラーに panic の内容を重ねます。
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	p := NewPanicError(operation, r)
	if *err != nil {
		*err = errors.Wrapf(*err, "%s", p.Error())
		return
	}
	*err = p
}

// SafeExecute runs fn, turning a panic into a *PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
