package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Verifier 校验 Bearer 令牌并返回调用方身份
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier HMAC 签名的 JWT，sub 即 owner id
type JWTVerifier struct {
	secret []byte
	logger *logrus.Logger
}

// NewJWTVerifier 创建 JWT 校验器
func NewJWTVerifier(secret string, logger *logrus.Logger) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	return &JWTVerifier{secret: []byte(secret), logger: logger}, nil
}

func (v *JWTVerifier) VerifyToken(_ context.Context, tokenString string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		v.logger.WithError(err).WithField("token", tokenSnippet(tokenString)).Debug("JWT 校验失败")
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: sub missing", ErrTokenInvalid)
	}
	return Identity{OwnerID: claims.Subject, Token: tokenString}, nil
}

// SignToken 签发令牌，供测试和内部工具使用
func SignToken(secret, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("签发令牌失败: %w", err)
	}
	return signed, nil
}

// IDTokenVerifier firebase auth.Client 中用到的部分
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier 校验 Firebase ID token，UID 即 owner id
type FirebaseVerifier struct {
	client IDTokenVerifier
	logger *logrus.Logger
}

// NewFirebaseVerifier 创建 Firebase 校验器
func NewFirebaseVerifier(client IDTokenVerifier, logger *logrus.Logger) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, logger: logger}
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, tokenString string) (Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, tokenString)
	if err != nil {
		v.logger.WithError(err).WithField("token", tokenSnippet(tokenString)).Debug("Firebase ID token 校验失败")
		if fbauth.IsIDTokenExpired(err) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if tok.UID == "" {
		return Identity{}, fmt.Errorf("%w: uid missing", ErrTokenInvalid)
	}
	return Identity{OwnerID: tok.UID, Token: tokenString}, nil
}

// tokenSnippet 日志中只打印令牌前缀
func tokenSnippet(tokenString string) string {
	const limit = 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}
