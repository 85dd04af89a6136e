package global

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"DMCore/logger"
	msgmodel "DMCore/module/message/model"
	"DMCore/service/chat"
	"DMCore/service/kafka"
	"DMCore/service/mgo"
	"DMCore/service/natsx"
	online "DMCore/service/storage"
	redisc "DMCore/service/storage/redis"
	"DMCore/tools/ids"
	"DMCore/tools/safe"

	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

// 环境变量：
// DM_GATEWAY_ID      默认 dm-gw-1
// DM_HTTP_ADDR       默认 :8080
// DM_NODE_ID         雪花节点号，默认 1
// DM_JWT_SECRET      令牌密钥
// DM_REDIS_ADDR      可选；presence 镜像
// DM_REDIS_PASSWORD
// DM_MONGO_URI       可选；消息/用户持久化
// DM_MONGO_DB        默认 dmcore
// DM_NATS_SERVERS    可选；投递总线
// DM_KAFKA_BROKERS   可选；消息创建事件流
// DM_KAFKA_CONSUME   =1 时把事件流当投递信道消费

func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetEnvInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func GatewayID() string { return GetEnv("DM_GATEWAY_ID", "dm-gw-1") }

func HTTPAddr() string { return GetEnv("DM_HTTP_ADDR", ":8080") }

func GetJwtSecret() []byte {
	return []byte(GetEnv("DM_JWT_SECRET", "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="))
}

func ConfigIds() {
	ids.SetNodeID(GetEnvInt("DM_NODE_ID", 1))
}

// ConfigRedis presence 镜像是可选外设，连不上只降级
func ConfigRedis() {
	addr := os.Getenv("DM_REDIS_ADDR")
	if addr == "" {
		logger.Infof("[Config] redis not configured, presence mirror disabled")
		return
	}
	if err := redisc.Init(redisc.Config{
		Addr:     addr,
		Password: os.Getenv("DM_REDIS_PASSWORD"),
	}); err != nil {
		logger.Warnf("[Config] redis init failed, presence mirror disabled: %v", err)
		return
	}
	store := online.Init(online.OnlineConfig{NodeID: GatewayID(), TTL: 300 * time.Second})

	// 周期清理镜像索引里的过期成员
	safe.SafeLoop(make(chan struct{}), func() {
		time.Sleep(time.Minute)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := store.ActiveUsers(ctx); err != nil {
			logger.Warnf("[Config] presence sweep: %v", err)
		}
	})
}

// ConfigMgo 消息存储；未配置时退化为内存存储（仅联调用）
func ConfigMgo(ctx context.Context) bool {
	uri := os.Getenv("DM_MONGO_URI")
	if uri == "" {
		logger.Infof("[Config] mongo not configured, falling back to memory store")
		return false
	}
	cfg := &mgo.Config{
		Uri:         uri,
		Database:    GetEnv("DM_MONGO_DB", "dmcore"),
		Username:    os.Getenv("DM_MONGO_USER"),
		Password:    os.Getenv("DM_MONGO_PASSWORD"),
		MaxPoolSize: 20,
	}
	if err := mgo.Init(ctx, cfg); err != nil {
		logger.Errorf("[Config] mongo init failed: %v", err)
		return false
	}
	return true
}

// ConfigNats 投递总线；未配置时消息走进程内直连
func ConfigNats() *natsx.NatsxClient {
	servers := os.Getenv("DM_NATS_SERVERS")
	if servers == "" {
		logger.Infof("[Config] nats not configured, in-process delivery path")
		return nil
	}
	cli, err := natsx.NewNatsxClient(natsx.NatsxConfig{
		Servers: strings.Split(servers, ","),
		Name:    GatewayID(),
	})
	if err != nil {
		logger.Warnf("[Config] nats init failed, in-process delivery path: %v", err)
		return nil
	}
	natsx.SetGlobal(cli)
	return cli
}

// ConfigKafka 后台启动消息创建事件流的生产端
func ConfigKafka() {
	brokers := os.Getenv("DM_KAFKA_BROKERS")
	if brokers == "" {
		return
	}
	go func() {
		bs := strings.Split(brokers, ",")
		if err := kafka.InitKafkaClient(bs); err != nil {
			glog.Infof("[Kafka][ERR] init client: %v", err)
			return
		}
		adminCfg := kafka.BuildBaseConfig()
		if admin, err := sarama.NewClusterAdmin(bs, adminCfg); err == nil {
			if err := kafka.EnsureTopics(admin, []string{kafka.TopicMessagesCreated}); err != nil {
				glog.Infof("[Kafka][ERR] ensure topics: %v", err)
			}
			_ = admin.Close()
		} else {
			glog.Infof("[Kafka][ERR] create admin: %v", err)
		}
		if err := kafka.InitSyncProducerFromClient(); err != nil {
			glog.Infof("[Kafka][ERR] init producer: %v", err)
			return
		}
		glog.Infof("[Kafka] producer ready, brokers=%v", bs)
	}()
}

// ConfigKafkaFeed 把消息创建事件流当投递信道消费（DM_KAFKA_CONSUME=1 开启）。
// 每个网关独立 groupID，各自看到全量事件并尝试本地投递；
// 开启后消息服务不再直投，避免同一条消息推两次。
func ConfigKafkaFeed(ctx context.Context, srv *chat.Server) {
	brokers := os.Getenv("DM_KAFKA_BROKERS")
	if brokers == "" || os.Getenv("DM_KAFKA_CONSUME") != "1" {
		return
	}
	kafka.RegisterHandler(kafka.TopicMessagesCreated, func(_ string, _, value []byte) error {
		m := &msgmodel.Message{}
		if err := json.Unmarshal(value, m); err != nil {
			return err
		}
		srv.Deliver(m)
		return nil
	})
	kafka.SetFeedActive(true)

	bs := strings.Split(brokers, ",")
	groupID := "dm-feed-" + GatewayID()
	safe.SafeGo(func() {
		err := kafka.StartConsumerGroup(ctx, bs, groupID, []string{kafka.TopicMessagesCreated})
		if err != nil && ctx.Err() == nil {
			logger.Warnf("[Config] kafka feed stopped: %v", err)
			kafka.SetFeedActive(false)
		}
	})
}
