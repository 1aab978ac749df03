package learning

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Experience is one observed transition used by an engine update.
type Experience struct {
	State     map[string]any
	Action    string
	Reward    float64
	NextState map[string]any
	Terminal  bool
}

// StateKey deterministically encodes a state snapshot: keys are sorted,
// primitives encode by value, collections by length and everything else by
// type name. Two runs observing the same state always produce the same key.
func StateKey(state map[string]any) string {
	if len(state) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+encodeValue(state[k]))
	}
	return strings.Join(parts, "|")
}

func encodeValue(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%v", v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("len:%d", rv.Len())
	default:
		return fmt.Sprintf("type:%T", v)
	}
}
