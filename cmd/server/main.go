// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/xcherryio/xtimer/cmd/server/bootstrap"

	_ "github.com/xcherryio/xtimer/extensions/postgres" // import postgres extension
)

func main() {
	app := &cli.App{
		Name:  "xTimer server",
		Usage: "start the xTimer server",
		Action: func(c *cli.Context) error {
			bootstrap.StartXTimerServerCli(c)
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  bootstrap.FlagConfig,
				Value: "./config/development-postgres.yaml",
				Usage: "the config to start xTimer server",
			},
			&cli.StringFlag{
				Name:  bootstrap.FlagService,
				Value: fmt.Sprintf("%v,%v", bootstrap.ApiServiceName, bootstrap.TimerServiceName),
				Usage: "the services to start, separated by comma",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
