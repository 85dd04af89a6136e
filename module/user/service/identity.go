package service

import (
	"time"

	errs "DMCore/tools/errs"
	security "DMCore/tools/security"
)

// Identity 身份服务：签发与校验访问令牌。
// 对核心网关只暴露 Validate（token 有效 -> 用户ID，否则拒绝）。
type Identity struct {
	opts security.Options
}

func NewIdentity(secret []byte, ttl time.Duration) *Identity {
	opts := security.DefaultOptions(secret)
	if ttl > 0 {
		opts.TTL = ttl
	}
	return &Identity{opts: opts}
}

// Issue 为 userID 签发令牌
func (i *Identity) Issue(userID string, scopes []string) (token string, expireAt time.Time, err error) {
	if userID == "" {
		return "", time.Time{}, errs.ErrArgs.WrapMsg("userID empty")
	}
	token, _, expireAt, err = security.Generate(i.opts, userID, scopes)
	return token, expireAt, err
}

// Validate 校验令牌并返回身份；任何失败统一视为拒绝
func (i *Identity) Validate(token string) (string, error) {
	if token == "" {
		return "", errs.ErrTokenMissing.WrapMsg("empty token")
	}
	claims, err := security.Verify(i.opts, token, "")
	if err != nil {
		return "", errs.ErrIdentityDenied.WrapMsg(err.Error())
	}
	userID := claims.UserID()
	if userID == "" {
		return "", errs.ErrIdentityDenied.WrapMsg("token has no subject")
	}
	return userID, nil
}
