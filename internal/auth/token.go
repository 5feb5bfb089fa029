package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength は署名鍵の最小バイト長。
const MinSecretLength = 16

// TokenType はクライアントに返すトークン種別。
const TokenType = "bearer"

// TokenConfig はトークンの署名と有効期間の設定。
// 起動時に1回構築し、IssuerとValidatorに共有する。
type TokenConfig struct {
	Secret      []byte
	Algorithm   string // HS256, HS384, HS512
	ExpireAfter time.Duration
}

// signingMethod は設定値から署名アルゴリズムを解決する。
func (c TokenConfig) signingMethod() (*jwt.SigningMethodHMAC, error) {
	if len(c.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if c.ExpireAfter <= 0 {
		return nil, fmt.Errorf("token expiry must be positive: %v", c.ExpireAfter)
	}
	switch c.Algorithm {
	case "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm: %q", c.Algorithm)
	}
}

// IssuedToken は発行したトークンと、そのクレームの主要値。
type IssuedToken struct {
	Raw       string
	Subject   string
	ExpiresAt time.Time
}

// TokenIssuer はユーザー名をsubに持つ署名付きトークンを発行する。
type TokenIssuer struct {
	method      *jwt.SigningMethodHMAC
	secret      []byte
	expireAfter time.Duration
	now         func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。鍵やアルゴリズムが不正な場合はエラーを返す。
func NewTokenIssuer(cfg TokenConfig, now func() time.Time) (*TokenIssuer, error) {
	method, err := cfg.signingMethod()
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		method:      method,
		secret:      cfg.Secret,
		expireAfter: cfg.ExpireAfter,
		now:         now,
	}, nil
}

// Issue はsubjectのトークンを発行する。
// expは秒精度に切り捨てた now + 有効期間。署名はsubとexpの両方を含むペイロード全体にかかる。
func (i *TokenIssuer) Issue(subject string) (*IssuedToken, error) {
	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.expireAfter)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	raw, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &IssuedToken{Raw: raw, Subject: subject, ExpiresAt: expiresAt}, nil
}

// tokenParser は署名を検証してクレームを取り出す。
// 有効期限の判定は呼び出し側が自前の時計で行うため、jwtライブラリのクレーム検証は無効にする。
type tokenParser struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	parser *jwt.Parser
}

func newTokenParser(cfg TokenConfig) (*tokenParser, error) {
	method, err := cfg.signingMethod()
	if err != nil {
		return nil, err
	}
	return &tokenParser{
		method: method,
		secret: cfg.Secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// parse は署名が一致する場合にクレームを返す。
// 署名不一致・形式不正・subやexpの欠落はいずれもエラーになる。
func (p *tokenParser) parse(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := p.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("token has no expiry")
	}
	return claims, nil
}
