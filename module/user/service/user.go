package service

import (
	"context"
	"time"

	usermodel "DMCore/module/user/model"
	"DMCore/service/mgo"
	errs "DMCore/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userColl = "users"

// EnsureUser 登录时补建用户主档（upsert）；mongo 未配置时跳过
func EnsureUser(ctx context.Context, userID, name string) (*usermodel.User, error) {
	if userID == "" {
		return nil, errs.ErrArgs.WrapMsg("userID empty")
	}
	now := time.Now()
	u := &usermodel.User{UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now}
	if !mgo.Ready() {
		return u, nil
	}

	coll := mgo.DB().Collection(userColl)
	filter := bson.M{"_id": userID}
	update := bson.M{
		"$set":         bson.M{"name": name, "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	if _, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return nil, errs.WrapMsg(err, "upsert user", "user", userID)
	}
	return u, nil
}

// GetUser 查询用户主档
func GetUser(ctx context.Context, userID string) (*usermodel.User, error) {
	if !mgo.Ready() {
		return nil, errs.ErrRecordNotFound.WrapMsg("user store not configured")
	}
	u := &usermodel.User{}
	err := mgo.DB().Collection(userColl).FindOne(ctx, bson.M{"_id": userID}).Decode(u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("user", "id", userID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user", "id", userID)
	}
	return u, nil
}
