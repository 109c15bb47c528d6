// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import "flag"

var useLocalServer = flag.Bool("useLocalServer", false,
	"run integ test against local server")

var createServerWithPostgres = flag.Bool("createServerWithPostgres", false,
	"when not useLocalServer, create a server with postgres instead of the in-memory store")

var serverAddress = flag.String("serverAddress", "localhost:18801",
	"the address of the xTimer API server")

var workerAddress = flag.String("workerAddress", "localhost:18802",
	"the address of the worker receiving the timeout callbacks")
