package kafka

import (
	"os"
	"strings"
	"testing"
)

// 需要真实 Kafka：DM_KAFKA_BROKERS=localhost:9092 go test ./service/kafka/
func testBrokers(t *testing.T) []string {
	v := os.Getenv("DM_KAFKA_BROKERS")
	if v == "" {
		t.Skip("DM_KAFKA_BROKERS not set, skipping kafka integration test")
	}
	return strings.Split(v, ",")
}

func TestConnectKafka(t *testing.T) {
	brokers := testBrokers(t)

	if err := InitKafkaClient(brokers); err != nil {
		t.Fatalf("InitKafkaClient failed: %v", err)
	}
	defer Close()

	if len(KafkaClient.Brokers()) == 0 {
		t.Fatalf("No brokers found in cluster")
	}
	t.Logf("Successfully connected to Kafka. Broker count: %d", len(KafkaClient.Brokers()))
}

func TestSendCreatedEvent(t *testing.T) {
	brokers := testBrokers(t)

	if err := InitKafkaClient(brokers); err != nil {
		t.Fatalf("InitKafkaClient failed: %v", err)
	}
	defer Close()
	if err := InitSyncProducerFromClient(); err != nil {
		t.Fatalf("InitSyncProducer failed: %v", err)
	}

	event := map[string]any{"id": "m1", "sender_id": "u1", "recipient_id": "u2"}
	if err := SendJSON(TopicMessagesCreated, "u2", event); err != nil {
		t.Errorf("SendJSON failed: %v", err)
	} else {
		t.Logf("Message sent successfully to topic %s", TopicMessagesCreated)
	}
}
