package kafka

import (
	"casereview/internal/platform/config"
	"casereview/internal/platform/kafka/producer"
)

// ProducerConfig maps the process configuration onto the producer's.
func ProducerConfig(cfg config.KafkaConfig) producer.Config {
	return producer.Config{
		Brokers:         cfg.Brokers,
		ClientID:        cfg.ClientID,
		Acks:            cfg.Acks,
		Retries:         cfg.Retries,
		DeliveryTimeout: cfg.DeliveryTimeout,
	}
}
