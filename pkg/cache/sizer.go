package cache

import "encoding/json"

// Sizer estimates the footprint of a value for capacity accounting. It is
// supplied per value type rather than derived from reflection so the
// accounting stays cheap and predictable.
type Sizer[V any] func(v V) int64

// BytesSizer measures raw byte payloads.
func BytesSizer(b []byte) int64 {
	return int64(len(b))
}

// StringSizer measures string payloads.
func StringSizer(s string) int64 {
	return int64(len(s))
}

// JSONSizer measures values by the length of their JSON encoding. It is the
// default when no sizer is supplied; values that fail to encode are counted
// as a single byte so accounting never fails.
func JSONSizer[V any]() Sizer[V] {
	return func(v V) int64 {
		data, err := json.Marshal(v)
		if err != nil {
			return 1
		}
		return int64(len(data))
	}
}
