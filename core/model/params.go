package model

import (
	"math"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// ToInt はハイパーパラメータ値を int に変換する。
// YAML/JSON 由来の float64 や int64 も整数値であれば受け付ける。
func ToInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// ToFloat はハイパーパラメータ値を float64 に変換する。
func ToFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", v)
}

// ToString はハイパーパラメータ値を string に変換する。
func ToString(name string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(name, "must be a string", v)
}

// UnknownParam は推定器が受け付けないキーに対するエラーを返す。
func UnknownParam(estimator, name string, v interface{}) error {
	return errors.NewValidationError(name, "unknown parameter for "+estimator, v)
}
