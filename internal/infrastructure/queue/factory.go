package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/shopsphere-backend/internal/config"
)

// FromConfig builds the delivery queue selected by QUEUE_DRIVER
func FromConfig(cfg config.QueueConfig, client redis.UniversalClient) (Queue, error) {
	switch cfg.Driver {
	case config.QueueDriverRedis, "":
		if client == nil {
			return nil, fmt.Errorf("redis queue needs a redis client")
		}
		return NewRedisQueue(client, cfg.Name,
			WithVisibilityTimeout(cfg.VisibilityTimeout),
			WithPollInterval(cfg.PollInterval),
		), nil
	case config.QueueDriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka queue needs at least one broker")
		}
		return NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID,
			WithDeferInterval(cfg.PollInterval),
			WithRedeliveryDelay(cfg.VisibilityTimeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}
