package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaConfig mirrors the reference fraud-alert producer's configuration
// shape, adapted to the event-stream domain: idempotent production for
// pot_awarded/bet events (financial), async for everything else.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	MaxRetries int
}

// KafkaPublisher publishes GameEvents onto a Kafka topic. Pot-affecting
// events are sent through a sync, idempotent producer (matching financial
// guarantees); high-volume low-stakes events use a best-effort async
// producer.
type KafkaPublisher struct {
	sync  sarama.SyncProducer
	async sarama.AsyncProducer
	topic string
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	syncCfg := sarama.NewConfig()
	syncCfg.Producer.Return.Successes = true
	syncCfg.Producer.Return.Errors = true
	syncCfg.Producer.Retry.Max = cfg.MaxRetries
	syncCfg.Producer.RequiredAcks = sarama.WaitForAll
	// Idempotent production for exactly-once semantics on financial events.
	syncCfg.Producer.Idempotent = true
	syncCfg.Net.MaxOpenRequests = 1

	syncProducer, err := sarama.NewSyncProducer(cfg.Brokers, syncCfg)
	if err != nil {
		return nil, fmt.Errorf("events: sync producer: %w", err)
	}

	asyncCfg := sarama.NewConfig()
	asyncCfg.Producer.Return.Successes = false
	asyncCfg.Producer.Return.Errors = false
	asyncCfg.Producer.RequiredAcks = sarama.WaitForLocal
	asyncProducer, err := sarama.NewAsyncProducer(cfg.Brokers, asyncCfg)
	if err != nil {
		syncProducer.Close()
		return nil, fmt.Errorf("events: async producer: %w", err)
	}

	return &KafkaPublisher{sync: syncProducer, async: asyncProducer, topic: cfg.Topic}, nil
}

func isFinancial(k string) bool {
	switch k {
	case "bet", "all_in", "pot_created", "pot_awarded", "blind_posted":
		return true
	default:
		return false
	}
}

func (p *KafkaPublisher) Publish(_ context.Context, records []Record) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("events: marshal: %w", err)
		}
		msg := &sarama.ProducerMessage{
			Topic:     p.topic,
			Key:       sarama.StringEncoder(r.TableID),
			Value:     sarama.ByteEncoder(data),
			Timestamp: time.Now(),
		}
		if isFinancial(string(r.Event.Kind)) {
			if _, _, err := p.sync.SendMessage(msg); err != nil {
				return fmt.Errorf("events: send: %w", err)
			}
		} else {
			select {
			case p.async.Input() <- msg:
			default:
				// Drop under backpressure; never block a hand for a
				// display-only event.
			}
		}
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	err1 := p.sync.Close()
	err2 := p.async.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
