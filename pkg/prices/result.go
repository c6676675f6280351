package prices

import (
	"encoding/json"
)

// FetchResult is the terminal outcome of a fetch: exactly one of Data and
// Error is set. IsLoading is always false for results returned by this
// package and exists for consumers that render pending states.
type FetchResult[T any] struct {
	Data      T
	Error     string
	IsLoading bool
}

// Succeeded wraps data in a successful result.
func Succeeded[T any](data T) FetchResult[T] {
	return FetchResult[T]{Data: data}
}

// Failed wraps a user-facing error message.
func Failed[T any](message string) FetchResult[T] {
	return FetchResult[T]{Error: message}
}

// OK reports whether the result carries data.
func (r FetchResult[T]) OK() bool {
	return r.Error == ""
}

// MarshalJSON renders the absent side as null.
func (r FetchResult[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Data      any     `json:"data"`
		Error     *string `json:"error"`
		IsLoading bool    `json:"isLoading"`
	}{IsLoading: r.IsLoading}

	if r.OK() {
		out.Data = r.Data
	} else {
		msg := r.Error
		out.Error = &msg
	}

	return json.Marshal(out)
}
