// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package notification

import (
	"context"
	"encoding/json"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/xcherryio/xtimer/common/log"
	"github.com/xcherryio/xtimer/common/log/tag"
	"github.com/xcherryio/xtimer/config"
)

// messageProducer is the part of pulsar.Producer used for publishing
type messageProducer interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

type pulsarPublisher struct {
	client   pulsar.Client
	producer messageProducer
	logger   log.Logger
}

func NewPulsarPublisher(cfg config.PulsarConfig, logger log.Logger) (Publisher, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:              cfg.Url,
		OperationTimeout: cfg.OperationTimeout,
	})
	if err != nil {
		return nil, err
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic:       cfg.Topic,
		SendTimeout: cfg.OperationTimeout,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("pulsar publisher is created", tag.Address(cfg.Url), tag.Value(cfg.Topic))
	return &pulsarPublisher{
		client:   client,
		producer: producer,
		logger:   logger,
	}, nil
}

func (p *pulsarPublisher) Publish(ctx context.Context, event TimerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// keyed by timer id so that the events of a timer stay ordered on key_shared subscriptions
	_, err = p.producer.Send(ctx, &pulsar.ProducerMessage{
		Key:       event.TimerId,
		Payload:   payload,
		EventTime: event.Time,
		Properties: map[string]string{
			"type":          string(event.Type),
			"timedObjectId": event.TimedObjectId,
		},
	})
	if err != nil {
		p.logger.Error("failed to publish timer event",
			tag.Error(err), tag.TimerId(event.TimerId), tag.Value(event.Type))
	}
	return err
}

func (p *pulsarPublisher) Close() error {
	p.producer.Close()
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
