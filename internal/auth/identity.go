package auth

import (
	"context"

	"MatchPoster/internal/model"
)

// Identity 当前调用方
type Identity struct {
	OwnerID string // 海报归属用户
	Token   string // 原始令牌，proxy 模式转发给后端
}

type identityKey struct{}

// WithIdentity 把调用方身份放入 ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom 取出调用方身份
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.OwnerID == "" {
		return Identity{}, false
	}
	return id, true
}

// RequireOwner 取出 owner id，缺失返回 model.ErrNoOwner
func RequireOwner(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", model.ErrNoOwner
	}
	return id.OwnerID, nil
}
