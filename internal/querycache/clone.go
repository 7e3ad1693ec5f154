package querycache

import "encoding/json"

// cloneValue deep-copies v through a JSON round trip so cached payloads never
// share slices or maps with callers.
func cloneValue[T any](v T) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}
