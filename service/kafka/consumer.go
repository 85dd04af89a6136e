package kafka

import (
	"context"
	"sync"
	"sync/atomic"

	"DMCore/logger"
	errs "DMCore/tools/errs"

	"github.com/Shopify/sarama"
)

// 事件流投递信道开关：开启后消息服务不再直投，
// 统一由消费组路由（与 NATS 总线二选一）
var feedActive atomic.Bool

func SetFeedActive(v bool) { feedActive.Store(v) }
func FeedActive() bool     { return feedActive.Load() }

// MessageHandler 按 topic 注册的消费回调
type MessageHandler func(topic string, key, value []byte) error

var (
	handlerMu  sync.RWMutex
	handlerMap = make(map[string]MessageHandler)
)

// RegisterHandler 同一 topic 只允许一个处理函数，后注册的不覆盖
func RegisterHandler(topic string, handler MessageHandler) bool {
	if topic == "" || handler == nil {
		return false
	}
	handlerMu.Lock()
	defer handlerMu.Unlock()
	if _, exists := handlerMap[topic]; exists {
		logger.Warnf("[kafka] duplicate handler for topic=%s, kept old", topic)
		return false
	}
	handlerMap[topic] = handler
	return true
}

func getHandler(topic string) MessageHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return handlerMap[topic]
}

type groupHandler struct{}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	logger.Info("[kafka] consumer group setup")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	logger.Info("[kafka] consumer group cleanup")
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if fn := getHandler(msg.Topic); fn != nil {
			if err := fn(msg.Topic, msg.Key, msg.Value); err != nil {
				logger.Warnf("[kafka] handler topic=%s offset=%d err=%v", msg.Topic, msg.Offset, err)
			}
		}
		// 尽力而为：处理失败也推进 offset，不重放
		session.MarkMessage(msg, "")
	}
	return nil
}

// StartConsumerGroup 起一个消费组并阻塞消费（rebalance 后自动续），
// ctx 取消时退出。每个网关用独立 groupID，各自看到全量事件。
func StartConsumerGroup(ctx context.Context, brokers []string, groupID string, topics []string) error {
	config := BuildBaseConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return errs.WrapMsg(err, "consumer group", "group", groupID)
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			logger.Warnf("[kafka] consumer group error: %v", err)
		}
	}()

	handler := &groupHandler{}
	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			logger.Warnf("[kafka] consume: %v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
