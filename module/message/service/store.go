package service

import (
	"context"
	"sort"
	"sync"

	msgmodel "DMCore/module/message/model"
	"DMCore/service/mgo"
	errs "DMCore/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageColl = "messages"

// Store 消息持久层。投递前必须先落库（离线方靠历史拉取兜底）。
type Store interface {
	Insert(ctx context.Context, msg *msgmodel.Message) error
	// History a<->b 双向会话历史，按创建时间升序，最多 limit 条
	History(ctx context.Context, a, b string, limit int64) ([]*msgmodel.Message, error)
}

// ===== Mongo 实现 =====

type MongoStore struct{}

func NewMongoStore() *MongoStore { return &MongoStore{} }

func (s *MongoStore) Insert(ctx context.Context, msg *msgmodel.Message) error {
	if _, err := mgo.DB().Collection(messageColl).InsertOne(ctx, msg); err != nil {
		return errs.WrapMsg(err, "insert message", "id", msg.ID)
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, a, b string, limit int64) ([]*msgmodel.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "recipient_id": b},
		bson.M{"sender_id": b, "recipient_id": a},
	}}
	opts := options.Find().SetSort(bson.M{"created_at": 1}).SetLimit(limit)
	cur, err := mgo.DB().Collection(messageColl).Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "find history")
	}
	defer cur.Close(ctx)

	var out []*msgmodel.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode history")
	}
	return out, nil
}

// ===== 内存实现（单测/无 Mongo 的本地联调） =====

type MemoryStore struct {
	mu   sync.RWMutex
	msgs []*msgmodel.Message
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Insert(_ context.Context, msg *msgmodel.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *MemoryStore) History(_ context.Context, a, b string, limit int64) ([]*msgmodel.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*msgmodel.Message
	for _, m := range s.msgs {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
