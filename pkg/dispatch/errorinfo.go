package dispatch

import "reflect"

// NormalizeErrorInfo turns the errorInfo argument of TrackError into the
// ordered sequence handed to error clients:
//
//   - a []any is returned as is;
//   - any other slice or array becomes a []any of its elements, in order;
//   - anything else, nil included, becomes a one-element []any.
//
// A nil slice of any type counts as absent details and becomes []any{nil}.
// []byte is treated as a single value, not a sequence of bytes. The result
// is never nil; an empty non-nil sequence stays empty.
func NormalizeErrorInfo(errorInfo any) []any {
	switch v := errorInfo.(type) {
	case nil:
		return []any{nil}
	case []any:
		if v == nil {
			return []any{nil}
		}
		return v
	case []byte:
		return []any{v}
	case []error:
		if v == nil {
			return []any{nil}
		}
		out := make([]any, len(v))
		for i, err := range v {
			out[i] = err
		}
		return out
	}

	rv := reflect.ValueOf(errorInfo)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{nil}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	default:
		return []any{errorInfo}
	}
}
