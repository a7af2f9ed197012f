// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry publishes sketch events over MQTT and decodes them on the
// consumer side.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/etch_sketch/internal/sketch"
)

// Topics names the MQTT topics for each event kind.
type Topics struct {
	Plot  string
	Clear string
}

// Connect opens an MQTT client and waits for the connection.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// publisher is the part of mqtt.Client used by Publisher.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher implements sketch.Observer. Publishing never blocks the loop:
// delivery errors are logged when the token completes.
type Publisher struct {
	client publisher
	topics Topics
}

func NewPublisher(client publisher, topics Topics) *Publisher {
	return &Publisher{client: client, topics: topics}
}

// Observe publishes e on the topic for its kind.
func (p *Publisher) Observe(e sketch.Event) {
	topic, err := p.topic(e.Kind)
	if err != nil {
		log.Printf("telemetry: %v", err)
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("telemetry: marshal %s event: %v", e.Kind, err)
		return
	}
	token := p.client.Publish(topic, 0, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.Printf("telemetry: publish %s: %v", topic, err)
		}
	}()
}

func (p *Publisher) topic(kind string) (string, error) {
	switch kind {
	case sketch.KindPlot:
		return p.topics.Plot, nil
	case sketch.KindClear:
		return p.topics.Clear, nil
	default:
		return "", fmt.Errorf("unknown event kind %q", kind)
	}
}

// Decode parses one event payload.
func Decode(payload []byte) (sketch.Event, error) {
	var e sketch.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return e, fmt.Errorf("telemetry: decode event: %w", err)
	}
	if e.Kind != sketch.KindPlot && e.Kind != sketch.KindClear {
		return e, fmt.Errorf("telemetry: unknown event kind %q", e.Kind)
	}
	return e, nil
}

// subscriber is the part of mqtt.Client used by Subscribe.
type subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Subscribe delivers every decoded event on both topics to fn. Malformed
// payloads are logged and dropped.
func Subscribe(client subscriber, topics Topics, fn func(sketch.Event)) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		e, err := Decode(msg.Payload())
		if err != nil {
			log.Printf("telemetry: %s: %v", msg.Topic(), err)
			return
		}
		fn(e)
	}
	for _, topic := range []string{topics.Plot, topics.Clear} {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("telemetry: subscribe %s: %w", topic, token.Error())
		}
		log.Printf("telemetry: subscribed to %s", topic)
	}
	return nil
}
