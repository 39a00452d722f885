// Package auth はJWT認証とユーザー登録・ログインを提供する。
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// トークン種別。token_typeクレームに設定し、アクセストークンと
// リフレッシュトークンの取り違えを防ぐ。
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPair はログイン・リフレッシュ時に発行されるトークンのペア。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Claims はJWTに埋め込むクレーム。
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager はJWTの発行と検証を行う。
// HMAC-SHA256（HS256）で署名する。
type TokenManager struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secret string, accessTokenTTL, refreshTokenTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:          []byte(secret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// GenerateTokenPair はユーザーIDに対してアクセストークンとリフレッシュトークンを発行する。
func (m *TokenManager) GenerateTokenPair(userID string) (*TokenPair, error) {
	access, err := m.generate(userID, TokenTypeAccess, m.accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := m.generate(userID, TokenTypeRefresh, m.refreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (m *TokenManager) generate(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifyAccessToken はアクセストークンを検証し、ユーザーIDを返す。
// 署名不正、期限切れ、token_type不一致の場合はエラーを返す。
func (m *TokenManager) VerifyAccessToken(tokenString string) (string, error) {
	return m.verify(tokenString, TokenTypeAccess)
}

// VerifyRefreshToken はリフレッシュトークンを検証し、ユーザーIDを返す。
func (m *TokenManager) VerifyRefreshToken(tokenString string) (string, error) {
	return m.verify(tokenString, TokenTypeRefresh)
}

func (m *TokenManager) verify(tokenString, wantType string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// alg混同攻撃対策: HMAC系以外の署名方式を拒否する
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if claims.TokenType != wantType {
		return "", fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("missing subject claim")
	}

	return claims.Subject, nil
}
