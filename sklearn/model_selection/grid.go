package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/scitrain/core/model"
)

// ParameterGrid expands a search space into every combination.
//
// Keys are visited in sorted order and the last key varies fastest, so the
// enumeration order is stable across runs. An empty space yields nil.
func ParameterGrid(space model.SearchSpace) []map[string]interface{} {
	if space.Size() == 0 {
		return nil
	}
	keys := make([]string, 0, len(space))
	for k := range space {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := make([]map[string]interface{}, 0, space.Size())
	idx := make([]int, len(keys))
	for {
		combo := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			combo[k] = space[k][idx[i]]
		}
		combos = append(combos, combo)

		// odometer
		i := len(keys) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(space[keys[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return combos
		}
	}
}
