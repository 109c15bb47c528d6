// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTimerIdIsParsable(t *testing.T) {
	id := MustNewTimerId()
	parsed, err := ParseTimerId(id)
	assert.Nil(t, err)
	assert.Equal(t, id, parsed)
	assert.NotEqual(t, id, MustNewTimerId())
}

func TestParseTimerIdInvalid(t *testing.T) {
	_, err := ParseTimerId("not-a-uuid")
	assert.NotNil(t, err)
	_, err = ParseTimerId("00000000-0000-0000-0000-000000000000")
	assert.NotNil(t, err)
	assert.Panics(t, func() { MustParseTimerId("") })
}
