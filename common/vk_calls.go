package common

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// create runs a vkCreate* or vkAllocate* style call that hands its result back through the last argument.
func create[H any](what string, call func(out *H) vk.Result) (H, error) {
	var h H
	if err := vk.Error(call(&h)); err != nil {
		var zero H
		return zero, fmt.Errorf("create %s: %w", what, err)
	}
	return h, nil
}

// enumerate runs a count-then-fill query: once with a nil slice for the count, once more to fill a slice of that size.
// Queries the bindings declare without a result return vk.Success from call.
func enumerate[T any](what string, call func(count *uint32, out []T) vk.Result) ([]T, error) {
	var n uint32
	if err := vk.Error(call(&n, nil)); err != nil {
		return nil, fmt.Errorf("count %s: %w", what, err)
	}
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}
	if err := vk.Error(call(&n, out)); err != nil {
		return nil, fmt.Errorf("read %d %s: %w", len(out), what, err)
	}
	return out[:n], nil
}
