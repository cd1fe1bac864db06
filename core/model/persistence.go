package model

import (
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// SaveModelToWriter はモデルを gob 形式で io.Writer に保存する
//
// インターフェース値（model.Estimator など）を含む構造体を保存する場合、
// 具体型は事前に gob.Register されている必要がある。各推定器パッケージは init で登録する。
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先のモデル（ポインタ）
//   - r: 読み込み元のReader
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
