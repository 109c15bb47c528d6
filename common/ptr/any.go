// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package ptr

func Any[T any](obj T) *T {
	return &obj
}

// Deref returns the value pointed by p, or the zero value for nil
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
