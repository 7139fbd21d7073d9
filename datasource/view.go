package datasource

import (
	"context"
	"fmt"

	"github.com/chrisvdg/dashcache/cache"
	"github.com/chrisvdg/dashcache/fetch"
)

// Value is the state of a view at one point in time
type Value[T any] struct {
	Data      T
	IsLoading bool
	// Error is set when fetching or deriving the data failed, Data is the zero value then
	Error string
}

// View is an observer's subscription to a query result.
// Views of equal queries share one cache entry.
type View[T any] struct {
	h       *cache.Handle
	derive  func(*fetch.Result) (T, error)
	refresh func()
}

// newView returns a view on h, refresh is called by Refresh and may be nil
func newView[T any](h *cache.Handle, derive func(*fetch.Result) (T, error), refresh func()) *View[T] {
	return &View[T]{
		h:       h,
		derive:  derive,
		refresh: refresh,
	}
}

func (v *View[T]) value(s cache.State) Value[T] {
	out := Value[T]{
		IsLoading: s.IsLoading,
		Error:     s.Error,
	}
	if s.Error != "" || s.Data == nil {
		return out
	}

	res, ok := s.Data.(*fetch.Result)
	if !ok {
		out.Error = fmt.Sprintf("unexpected cache data %T", s.Data)
		return out
	}
	data, err := v.derive(res)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Data = data

	return out
}

// Key returns the resource key the view observes
func (v *View[T]) Key() string {
	return v.h.Key()
}

// State returns the current value
func (v *View[T]) State() Value[T] {
	return v.value(v.h.State())
}

// Subscribe calls fn with the new value on every change until cancel is called
func (v *View[T]) Subscribe(fn func(Value[T])) (cancel func()) {
	return v.h.Subscribe(func(s cache.State) {
		fn(v.value(s))
	})
}

// Wait blocks until the view has finished loading or ctx is done
func (v *View[T]) Wait(ctx context.Context) (Value[T], error) {
	s, err := v.h.Wait(ctx)
	return v.value(s), err
}

// Refresh refetches the underlying resource.
// Demo views only refetch a snapshot whose load failed.
func (v *View[T]) Refresh() {
	if v.refresh != nil {
		v.refresh()
	}
}

// Close releases the view
func (v *View[T]) Close() {
	v.h.Close()
}

// decodeAs decodes a JSON result into T
func decodeAs[T any](res *fetch.Result) (T, error) {
	var v T
	err := res.Decode(&v)
	return v, err
}

// text returns the body of a textual result, JSON results are returned verbatim
func text(res *fetch.Result) (string, error) {
	if res.Kind == fetch.KindJSON {
		return string(res.JSON), nil
	}
	return res.Text, nil
}
