package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cadenza/backend/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
	// ErrTokenClaims 签名有效但身份声明不完整（未知角色、教师缺少 teacher_id）
	ErrTokenClaims = errors.New("token 身份声明无效")
)

const (
	issuer          = "cadenza"
	tokenTypeAccess = "access"

	roleAdmin   = "admin"
	roleTeacher = "teacher"
)

// Claims 调用方身份
// 教师账号必须携带 TeacherID，代课响应以它判断请求归属；管理员为空
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	TeacherID string `json:"teacher_id,omitempty"`
	TokenType string `json:"token_type"`
	jwtv5.RegisteredClaims
}

// IsAdmin 是否管理员
func (c *Claims) IsAdmin() bool { return c.Role == roleAdmin }

func (c *Claims) validate() error {
	if c.UserID == "" || c.TokenType != tokenTypeAccess {
		return ErrTokenClaims
	}
	switch c.Role {
	case roleAdmin:
		return nil
	case roleTeacher:
		if c.TeacherID == "" {
			return ErrTokenClaims
		}
		return nil
	default:
		return ErrTokenClaims
	}
}

// Manager 校验上游认证服务签发的 Access Token
// Generate 仅供运维脚本与测试签发
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.AccessTokenTTL,
		now:    time.Now,
	}
}

// GenerateAccessToken 签发 Access Token
func (m *Manager) GenerateAccessToken(userID, role, teacherID string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TeacherID: teacherID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.ttl)),
			Issuer:    issuer,
		},
	}
	if err := claims.validate(); err != nil {
		return "", err
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken 校验签名、签发方、过期时间与身份声明
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtv5.ParseWithClaims(tokenString, claims,
		func(*jwtv5.Token) (interface{}, error) { return m.secret, nil },
		jwtv5.WithIssuer(issuer),
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if err := claims.validate(); err != nil {
		return nil, err
	}
	return claims, nil
}
