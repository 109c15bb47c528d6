// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		// Log is the logging config
		Log Logger `yaml:"log"`

		// Database is where the persistent timers are stored.
		// When SQL is absent, timers are kept in memory and lost on restart.
		Database DatabaseConfig `yaml:"database"`

		// TimerService is the config for the timer service and its timer task engine
		TimerService TimerServiceConfig `yaml:"timerService"`

		// ApiService is the API service config
		ApiService ApiServiceConfig `yaml:"apiService"`

		// Notification is the config for publishing timer lifecycle events
		Notification NotificationConfig `yaml:"notification"`
	}

	DatabaseConfig struct {
		// SQL is the SQL database config
		// Only SQL is supported for now.
		SQL *SQL `yaml:"sql"`
	}

	ApiServiceConfig struct {
		// HttpServer is the config for starting http.Server
		HttpServer HttpServerConfig `yaml:"httpServer"`
	}

	TimerServiceConfig struct {
		// TimedObjectId identifies the owner of the timers managed by this service.
		// Persisted timers are loaded and restored by this id.
		TimedObjectId string `yaml:"timedObjectId"`
		// Invoker is the config of the timed object invoker that receives the timeout callbacks
		Invoker InvokerConfig `yaml:"invoker"`
		// TimerTaskQueue is the config for the queue that fires the timer tasks
		TimerTaskQueue TimerTaskQueueConfig `yaml:"timerTaskQueue"`
		// PersistRetryPolicy is the retry policy for persisting the resolved state
		// of a timer after the timeout callback has been attempted.
		PersistRetryPolicy RetryPolicy `yaml:"persistRetryPolicy"`
	}

	InvokerConfig struct {
		// Url is the endpoint of the worker that the timeout callbacks are posted to
		Url string `yaml:"url"`
		// Timeout is the timeout of a single callback request.
		// If not specified then the default value of 10 seconds is used.
		Timeout time.Duration `yaml:"timeout"`
	}

	TimerTaskQueueConfig struct {
		// ProcessorConcurrency is the number of goroutines that will be created to run
		// timer tasks. Tasks of different timers run concurrently; firings of the same timer never overlap.
		// If not specified then the default value of 10.
		ProcessorConcurrency int `yaml:"processorConcurrency"`
		// ProcessorBufferSize is the size of the buffer of fired tasks waiting for a processor goroutine.
		// If not specified then the default value of 1000 is used.
		ProcessorBufferSize int `yaml:"processorBufferSize"`
		// CompletionBufferSize is the size of the buffer for receiving completed tasks from processor.
		// If not specified then the default value of 1000 is used.
		CompletionBufferSize int `yaml:"completionBufferSize"`
	}

	RetryPolicy struct {
		// InitialInterval is the backoff before the first retry. Default 100ms.
		InitialInterval time.Duration `yaml:"initialInterval"`
		// BackoffCoefficient is the multiplier of the backoff for each retry. Default 2.
		BackoffCoefficient float64 `yaml:"backoffCoefficient"`
		// MaximumInterval caps the backoff. Default 2 seconds.
		MaximumInterval time.Duration `yaml:"maximumInterval"`
		// MaximumAttempts is the total number of attempts, including the first one. Default 3.
		MaximumAttempts int32 `yaml:"maximumAttempts"`
	}

	NotificationConfig struct {
		// Pulsar enables publishing timer lifecycle events to Pulsar.
		// When absent, events are dropped.
		Pulsar *PulsarConfig `yaml:"pulsar"`
	}

	PulsarConfig struct {
		// Url is the service url of the Pulsar cluster, e.g. pulsar://localhost:6650
		Url string `yaml:"url"`
		// Topic is the topic that timer events are published to
		Topic string `yaml:"topic"`
		// OperationTimeout is the timeout of producer creation and sending.
		// If not specified then the default value of 30 seconds is used.
		OperationTimeout time.Duration `yaml:"operationTimeout"`
	}

	// HttpServerConfig is the config that will be mapped into http.Server
	HttpServerConfig struct {
		// Address optionally specifies the TCP address for the server to listen on,
		// in the form "host:port". If empty, ":http" (port 80) is used.
		// The service names are defined in RFC 6335 and assigned by IANA.
		// See net.Dial for details of the address format.
		// For more details, see https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/
		Address string `yaml:"address"`
		// ReadTimeout is the maximum duration for reading the entire
		// request, including the body. Because ReadTimeout does not
		// let Handlers make per-request decisions on each request body's acceptable
		// deadline or upload rate, most users will prefer to use
		// ReadHeaderTimeout. It is valid to use them both.
		ReadTimeout time.Duration `yaml:"readTimeout"`
		/// WriteTimeout is the maximum duration before timing out
		// writes of the response. It is valid to use them both ReadTimeout and WriteTimeout.
		// For more details, see https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		// TLSConfig optionally provides a TLS configuration for use
		// by ServeTLS and ListenAndServeTLS
		TLSConfig *tls.Config `yaml:"tlsConfig"`
		// the rest are less frequently used
		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		IdleTimeout       time.Duration `yaml:"idleTimeout"`
		MaxHeaderBytes    int           `yaml:"maxHeaderBytes"`
	}
)

// NewConfig returns a new decoded Config struct
func NewConfig(configPath string) (*Config, error) {
	log.Printf("Loading configFile=%v\n", configPath)

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)

	if err := d.Decode(&config); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) ValidateAndSetDefaults() error {
	if sql := c.Database.SQL; sql != nil {
		if anyAbsent(sql.DatabaseName, sql.DBExtensionName, sql.ConnectAddr, sql.User) {
			return fmt.Errorf("some required configs are missing: sql.DatabaseName, sql.DBExtensionName, sql.ConnectAddr, sql.User")
		}
	}

	svc := &c.TimerService
	if svc.TimedObjectId == "" {
		return fmt.Errorf("timerService.timedObjectId is required")
	}
	if svc.Invoker.Url == "" {
		return fmt.Errorf("timerService.invoker.url is required")
	}
	if svc.Invoker.Timeout == 0 {
		svc.Invoker.Timeout = 10 * time.Second
	}

	qCfg := &svc.TimerTaskQueue
	if qCfg.ProcessorConcurrency == 0 {
		qCfg.ProcessorConcurrency = 10
	}
	if qCfg.ProcessorBufferSize == 0 {
		qCfg.ProcessorBufferSize = 1000
	}
	if qCfg.CompletionBufferSize == 0 {
		qCfg.CompletionBufferSize = 1000
	}

	policy := &svc.PersistRetryPolicy
	if policy.InitialInterval == 0 {
		policy.InitialInterval = 100 * time.Millisecond
	}
	if policy.BackoffCoefficient == 0 {
		policy.BackoffCoefficient = 2
	}
	if policy.MaximumInterval == 0 {
		policy.MaximumInterval = 2 * time.Second
	}
	if policy.MaximumAttempts == 0 {
		policy.MaximumAttempts = 3
	}
	if policy.BackoffCoefficient < 1 {
		return fmt.Errorf("timerService.persistRetryPolicy.backoffCoefficient must be >= 1")
	}

	if c.ApiService.HttpServer.Address == "" {
		return fmt.Errorf("apiService.httpServer.address cannot be empty")
	}

	if p := c.Notification.Pulsar; p != nil {
		if anyAbsent(p.Url, p.Topic) {
			return fmt.Errorf("some required configs are missing: notification.pulsar.url, notification.pulsar.topic")
		}
		if p.OperationTimeout == 0 {
			p.OperationTimeout = 30 * time.Second
		}
	}
	return nil
}

func anyAbsent(strs ...string) bool {
	for _, s := range strs {
		if s == "" {
			return true
		}
	}
	return false
}

// String converts the config object into a string
func (c *Config) String() string {
	out, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		panic(err)
	}
	return string(out)
}
