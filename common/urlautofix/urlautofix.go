// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package urlautofix

import (
	"os"
	"strings"
)

// EnvAutoFixLocalhostWorkerUrl replaces the localhost of worker urls,
// e.g. with host.docker.internal when the server runs in docker
const EnvAutoFixLocalhostWorkerUrl = "AUTO_FIX_LOCALHOST_WORKER_URL"

type FixWorkerUrlFunc func(url string) string

var workerUrlFixer FixWorkerUrlFunc = DefaultFixWorkerUrlFunc

func SetWorkerUrlFixer(fixer FixWorkerUrlFunc) {
	workerUrlFixer = fixer
}

func FixWorkerUrl(url string) string {
	return workerUrlFixer(url)
}

func DefaultFixWorkerUrlFunc(url string) string {
	autofixUrl := os.Getenv(EnvAutoFixLocalhostWorkerUrl)
	if autofixUrl != "" {
		url = strings.Replace(url, "localhost", autofixUrl, 1)
		url = strings.Replace(url, "127.0.0.1", autofixUrl, 1)
	}

	return url
}
