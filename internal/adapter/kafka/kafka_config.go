package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// NewGroup builds the consumer group for the order-status stream.
// Offsets start at newest: settlements for orders cut before this
// process existed belong to no live session.
func NewGroup(brokers []string, groupID string, dialTimeout time.Duration) (sarama.ConsumerGroup, error) {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Net.DialTimeout = dialTimeout
	return sarama.NewConsumerGroup(brokers, groupID, cfg)
}
