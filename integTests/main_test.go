// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package integTests

import (
	"context"
	"flag"
	"fmt"
	"testing"
	"time"

	"github.com/xcherryio/xtimer/cmd/server/bootstrap"
	"github.com/xcherryio/xtimer/config"
	"github.com/xcherryio/xtimer/extensions"
	"github.com/xcherryio/xtimer/extensions/postgres"
	"github.com/xcherryio/xtimer/extensions/postgres/postgrestool"
)

var worker *timeoutWorker

func TestMain(m *testing.M) {
	flag.Parse()
	testDBName := fmt.Sprintf("test%v", time.Now().UnixNano())
	fmt.Printf("start running integ test, "+
		"testDBName: %v, useLocalServer:%v, createServerWithPostgres: %v \n",
		testDBName, *useLocalServer, *createServerWithPostgres)

	worker = startTimeoutWorker(*workerAddress)

	var shutdownFunc bootstrap.GracefulShutdown
	rootCtx, rootCtxCancelFunc := context.WithCancel(context.Background())

	if !*useLocalServer {
		cfg := config.Config{
			Log: config.Logger{
				Level: "debug",
			},
			TimerService: config.TimerServiceConfig{
				TimedObjectId: "integ-test",
				Invoker: config.InvokerConfig{
					Url:     fmt.Sprintf("http://%v%v", *workerAddress, workerTimeoutPath),
					Timeout: 5 * time.Second,
				},
			},
			ApiService: config.ApiServiceConfig{
				HttpServer: config.HttpServerConfig{
					Address:      *serverAddress,
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 60 * time.Second,
				},
			},
		}

		if *createServerWithPostgres {
			sqlConfig := &config.SQL{
				ConnectAddr:     fmt.Sprintf("%v:%v", postgrestool.DefaultEndpoint, postgrestool.DefaultPort),
				User:            postgrestool.DefaultUserName,
				Password:        postgrestool.DefaultPassword,
				DBExtensionName: postgres.ExtensionName,
				DatabaseName:    testDBName,
			}
			err := extensions.CreateDatabase(*sqlConfig, testDBName)
			if err != nil {
				panic(err)
			}
			defer func() {
				err := extensions.DropDatabase(*sqlConfig, testDBName)
				if err != nil {
					fmt.Println("failed to drop database ", testDBName, err)
				} else {
					fmt.Println("testing database is deleted")
				}
			}()
			err = extensions.SetupSchema(sqlConfig, "../"+postgrestool.DefaultSchemaFilePath)
			if err != nil {
				panic(err)
			}
			cfg.Database.SQL = sqlConfig
		}

		shutdownFunc = bootstrap.StartXTimerServer(rootCtx, &cfg, nil)
	}

	// looks like this wait can fix some flaky failure
	// where API call is made before Gin server is ready
	time.Sleep(time.Millisecond * 100)

	resultCode := m.Run()
	fmt.Println("finished running integ test with status code", resultCode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownFunc != nil {
		if err := shutdownFunc(ctx); err != nil {
			fmt.Println("shutdown error:", err)
		}
	}
	rootCtxCancelFunc()
	_ = worker.stop(ctx)
}
