// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package postgrestool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCLIOptions(t *testing.T) {
	app := BuildCLIOptions()

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"create-database", "install-schema", "drop-database"}, names)
	assert.NotNil(t, app.Command("install"))
}

func TestMissingDatabaseFlag(t *testing.T) {
	app := BuildCLIOptions()
	err := app.Run([]string{"postgrestool", "--database", "", "create-database"})
	assert.ErrorContains(t, err, "missing (--database) argument")
}
