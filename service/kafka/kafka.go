package kafka

import (
	"encoding/json"

	errs "DMCore/tools/errs"

	"github.com/Shopify/sarama"
)

// 消息创建事件流：下游（推送、角标、审计）自行消费，
// 网关只做 fire-and-forget 的生产端。

const TopicMessagesCreated = "dm.messages.created"

var (
	KafkaClient sarama.Client
	SyncProd    sarama.SyncProducer
)

func BuildBaseConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Version = sarama.V2_1_0_0
	return config
}

func InitKafkaClient(brokers []string) error {
	client, err := sarama.NewClient(brokers, BuildBaseConfig())
	if err != nil {
		return errs.WrapMsg(err, "kafka client", "brokers", brokers)
	}
	KafkaClient = client
	return nil
}

func InitSyncProducerFromClient() error {
	if KafkaClient == nil {
		return errs.New("kafka client not initialized")
	}
	p, err := sarama.NewSyncProducerFromClient(KafkaClient)
	if err != nil {
		return err
	}
	SyncProd = p
	return nil
}

// Ready 生产端是否可用（kafka 是可选外设）
func Ready() bool { return SyncProd != nil }

// SendSync 按 key 分区发送
func SendSync(topic, key string, value []byte) error {
	if SyncProd == nil {
		return errs.New("kafka producer not initialized")
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	_, _, err := SyncProd.SendMessage(msg)
	return err
}

// SendJSON 序列化后发送
func SendJSON(topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return SendSync(topic, key, data)
}

// EnsureTopics 启动时创建缺失的 topic
func EnsureTopics(admin sarama.ClusterAdmin, topics []string) error {
	existing, err := admin.ListTopics()
	if err != nil {
		return err
	}
	for _, t := range topics {
		if _, ok := existing[t]; ok {
			continue
		}
		detail := &sarama.TopicDetail{NumPartitions: 8, ReplicationFactor: 1}
		if err := admin.CreateTopic(t, detail, false); err != nil {
			return errs.WrapMsg(err, "create topic", "topic", t)
		}
	}
	return nil
}

func Close() {
	if SyncProd != nil {
		_ = SyncProd.Close()
		SyncProd = nil
	}
	if KafkaClient != nil {
		_ = KafkaClient.Close()
		KafkaClient = nil
	}
}
