// Copyright (c) 2018 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// MustNewTimerId returns a new time-ordered (v7) uuid string.
// Time ordering keeps timer rows of one owner roughly clustered by creation.
func MustNewTimerId() string {
	newUuid, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return newUuid.String()
}

// ParseTimerId validates s and returns it in the canonical 36 byte form
func ParseTimerId(s string) (string, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID string: %s", s)
	}
	if parsed == uuid.Nil {
		return "", fmt.Errorf("invalid UUID string: %s", s)
	}
	return parsed.String(), nil
}

// MustParseTimerId is ParseTimerId that panics on malformed input
func MustParseTimerId(s string) string {
	id, err := ParseTimerId(s)
	if err != nil {
		panic(err)
	}
	return id
}
