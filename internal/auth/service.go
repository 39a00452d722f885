package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// パスワードの最小文字数。
const passwordMinLength = 8

// Service は認証に関するビジネスロジックを提供する。
// ユーザー登録、ログイン、トークンリフレッシュを行う。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenManager) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// Register は新規ユーザーを登録し、トークンペアを発行する。
// メールアドレスが既に登録済みの場合はEMAIL_ALREADY_EXISTSエラーを返す。
// パスワードはbcryptでハッシュ化して保存する。
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.User, *TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)

	if err := validateRegistration(email, name, password); err != nil {
		return nil, nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewEmailAlreadyExistsError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, pair, nil
}

// Login はメールアドレスとパスワードで認証し、トークンペアを発行する。
// ユーザーが存在しない場合とパスワード不一致の場合は同一の
// INVALID_CREDENTIALSエラーを返す（ユーザー存在の推測を防ぐ）。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return user, pair, nil
}

// Refresh はリフレッシュトークンを検証し、新しいトークンペアを発行する。
// トークンが不正・期限切れの場合、または対象ユーザーが退会済みの場合は
// INVALID_TOKENエラーを返す。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidTokenError()
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	return pair, nil
}

// validateRegistration は登録入力を検証する。
func validateRegistration(email, name, password string) error {
	if email == "" || name == "" || password == "" {
		return model.NewInvalidRequestError("メールアドレス、名前、パスワードは必須です")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewInvalidRequestError("メールアドレスの形式が正しくありません")
	}
	if len(password) < passwordMinLength {
		return model.NewInvalidRequestError("パスワードは8文字以上で入力してください")
	}
	return nil
}
