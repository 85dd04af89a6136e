package mgo

import (
	"context"
	"sync"
	"time"

	errs "DMCore/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config Mongo 连接配置
type Config struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	MaxPoolSize uint64
	ConnectWait time.Duration
}

type MongoManager struct {
	mu     sync.RWMutex
	client *mongo.Client
	dbName string
}

var (
	globalOnce sync.Once
	globalMgr  *MongoManager
)

// Init 同步初始化（单例）；拨号失败返回错误，调用方决定是否降级
func Init(ctx context.Context, cfg *Config) error {
	var initErr error
	globalOnce.Do(func() {
		if cfg == nil || cfg.Uri == "" || cfg.Database == "" {
			initErr = errs.New("mongo config missing uri/database")
			return
		}
		wait := cfg.ConnectWait
		if wait <= 0 {
			wait = 5 * time.Second
		}

		opts := options.Client().ApplyURI(cfg.Uri)
		if cfg.MaxPoolSize > 0 {
			opts.SetMaxPoolSize(cfg.MaxPoolSize)
		}
		if cfg.Username != "" {
			opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
		}

		dctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()

		cli, err := mongo.Connect(dctx, opts)
		if err != nil {
			initErr = errs.WrapMsg(err, "mongo connect", "uri", cfg.Uri)
			return
		}
		if err := cli.Ping(dctx, readpref.Primary()); err != nil {
			initErr = errs.WrapMsg(err, "mongo ping", "uri", cfg.Uri)
			return
		}
		globalMgr = &MongoManager{client: cli, dbName: cfg.Database}
	})
	return initErr
}

// Ready 是否已初始化
func Ready() bool { return globalMgr != nil }

// DB 获取业务库
func DB() *mongo.Database {
	if globalMgr == nil {
		panic("mongo not initialized, call mgo.Init first")
	}
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	return globalMgr.client.Database(globalMgr.dbName)
}

// Close 断开连接
func Close(ctx context.Context) error {
	if globalMgr == nil || globalMgr.client == nil {
		return nil
	}
	return globalMgr.client.Disconnect(ctx)
}
