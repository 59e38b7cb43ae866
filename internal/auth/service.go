package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/noteit/internal/cache"
	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/repository"
)

// 一時ストアのキープレフィックス。
// verify: は確認トークンから仮登録本体への引き当て、
// pending: はメールアドレスから確認トークンへの逆引きに使用する。
const (
	verifyKeyPrefix  = "verify:"
	pendingKeyPrefix = "pending:"
)

// 入力検証の制約。
const (
	minUsernameLength = 3
	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Mailer は確認メールの送信インターフェース。
// 送信失敗は登録を失敗させない（best-effort）。
type Mailer interface {
	SendVerificationMail(ctx context.Context, toEmail, username, token string) error
}

// Metrics は認証フローの結果を計測するインターフェース。nilを許容する。
type Metrics interface {
	IncRegistration(outcome string)
	IncVerification(outcome string)
	IncLogin(outcome string)
	IncMailDelivery(outcome string)
}

// LoginResult はログイン成功時に発行されるトークンの組。
type LoginResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// Service は登録・メール確認・ログイン・ログアウトのビジネスロジックを提供する。
//
// 登録はユーザーを即時作成せず、確認待ちレコードを一時ストアに
// TTL付きで保持する。耐久ストアにユーザーが書かれるのはメール確認の
// 成功時のみ。一時ストアが利用不能な場合、登録は受け付けるが
// 確認が成立しなくなる（縮退動作）。
type Service struct {
	userRepo   repository.UserRepository
	store      cache.Store
	tokens     *TokenService
	mailer     Mailer
	metrics    Metrics
	pendingTTL time.Duration
}

// NewService はServiceを生成する。mailerとmetricsはnilを許容する。
func NewService(
	userRepo repository.UserRepository,
	store cache.Store,
	tokens *TokenService,
	mailer Mailer,
	metrics Metrics,
	pendingTTL time.Duration,
) *Service {
	return &Service{
		userRepo:   userRepo,
		store:      store,
		tokens:     tokens,
		mailer:     mailer,
		metrics:    metrics,
		pendingTTL: pendingTTL,
	}
}

// Register は仮登録を作成し、確認メールを送信する。
// メールアドレスが登録済みユーザーまたは確認待ち登録と重複する場合は
// EMAIL_ALREADY_IN_USEを返す。2つの重複チェックはアトミックではなく、
// 同一メールアドレスの同時登録は後勝ちになる。
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.PendingRegistration, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if err := validateRegistration(username, email, password); err != nil {
		s.incRegistration("validation_error")
		return nil, err
	}

	// 耐久ストア側の重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		s.incRegistration("error")
		return nil, fmt.Errorf("ユーザーの重複チェックに失敗しました: %w", err)
	}
	if existing != nil {
		s.incRegistration("duplicate")
		return nil, model.NewEmailInUseError()
	}

	// 一時ストア側の重複チェック。確認待ちの登録も使用中として扱う。
	var index model.PendingIndex
	if s.store.Get(ctx, pendingKeyPrefix+email, &index) {
		s.incRegistration("duplicate")
		return nil, model.NewEmailInUseError()
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		s.incRegistration("error")
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	token, err := s.tokens.IssueVerificationToken(email, username)
	if err != nil {
		s.incRegistration("error")
		return nil, fmt.Errorf("確認トークンの発行に失敗しました: %w", err)
	}

	pending := &model.PendingRegistration{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.store.Set(ctx, verifyKeyPrefix+token, pending, s.pendingTTL)
	s.store.Set(ctx, pendingKeyPrefix+email, &model.PendingIndex{VerificationToken: token}, s.pendingTTL)

	// メール送信の失敗は登録を失敗させない。ログに残して継続する。
	if s.mailer != nil {
		if err := s.mailer.SendVerificationMail(ctx, email, username, token); err != nil {
			s.incMailDelivery("error")
			slog.Error("failed to send verification mail",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		} else {
			s.incMailDelivery("sent")
		}
	}

	s.incRegistration("pending")
	slog.Info("registration pending verification", slog.String("email", email))
	return pending, nil
}

// VerifyEmail は確認トークンを検証してユーザーを作成する。
// 確認待ちレコードの削除により、トークンは一度しか使用できない。
func (s *Service) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		s.incVerification("validation_error")
		return nil, model.NewValidationError("確認トークンが指定されていません。")
	}

	claims, err := s.tokens.ValidateVerificationToken(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			s.incVerification("expired")
			return nil, model.NewTokenExpiredError()
		}
		s.incVerification("invalid")
		return nil, model.NewTokenInvalidError()
	}

	// 確認待ちレコードの引き当て。TTL失効・使用済み・一時ストア縮退の
	// いずれもキャッシュミスとして同じエラーになる。
	var pending model.PendingRegistration
	if !s.store.Get(ctx, verifyKeyPrefix+token, &pending) {
		s.incVerification("not_found")
		return nil, model.NewTokenNotFoundError()
	}

	// トークンのクレームと仮登録レコードの突合
	if !strings.EqualFold(claims.Email, pending.Email) {
		s.incVerification("mismatch")
		return nil, model.NewValidationError("確認トークンと登録情報が一致しません。")
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     pending.Username,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		Preferences:  model.Preferences{Theme: model.ThemeAuto},
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 確認待ちの間に同じメールアドレス・ユーザー名で別のユーザーが
		// 作成された場合。確認待ちレコードは消さずに残す。
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.incVerification("duplicate")
			return nil, model.NewEmailInUseError()
		}
		if errors.Is(err, repository.ErrDuplicateUsername) {
			s.incVerification("duplicate")
			return nil, model.NewValidationError("このユーザー名は既に使用されています。")
		}
		s.incVerification("error")
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	// 使用済みトークンの破棄。失敗してもTTLで消えるためbest-effort。
	s.store.Delete(ctx, verifyKeyPrefix+token)
	s.store.Delete(ctx, pendingKeyPrefix+pending.Email)

	s.incVerification("success")
	slog.Info("email verified, user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Login はメールアドレスとパスワードを検証してトークンを発行する。
//
// ユーザー不存在とパスワード不一致はどちらもUNAUTHORIZEDを返し区別しない。
// 例外として、確認待ち登録が存在する場合に限りEMAIL_NOT_VERIFIEDを返す。
// これは本人が登録直後にログインを試みる導線のための意図的な開示。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.incLogin("validation_error")
		return nil, model.NewValidationError("メールアドレスとパスワードを入力してください。")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		s.incLogin("error")
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	if user == nil {
		var index model.PendingIndex
		if s.store.Get(ctx, pendingKeyPrefix+email, &index) {
			s.incLogin("not_verified")
			return nil, model.NewEmailNotVerifiedError()
		}
		s.incLogin("unauthorized")
		return nil, model.NewUnauthorizedError()
	}

	if !user.IsVerified {
		s.incLogin("not_verified")
		return nil, model.NewEmailNotVerifiedError()
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			s.incLogin("unauthorized")
			return nil, model.NewUnauthorizedError()
		}
		s.incLogin("error")
		return nil, fmt.Errorf("パスワードの検証に失敗しました: %w", err)
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		s.incLogin("error")
		return nil, fmt.Errorf("アクセストークンの発行に失敗しました: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		s.incLogin("error")
		return nil, fmt.Errorf("リフレッシュトークンの発行に失敗しました: %w", err)
	}

	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		s.incLogin("error")
		return nil, fmt.Errorf("リフレッシュトークンの保存に失敗しました: %w", err)
	}

	s.incLogin("success")
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Logout は保存中のリフレッシュトークンをクリアする。
// トークンが無効・期限切れの場合も成功として扱う（冪等）。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	if err := s.userRepo.UpdateRefreshToken(ctx, claims.UserID, ""); err != nil {
		return fmt.Errorf("リフレッシュトークンのクリアに失敗しました: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

// validateRegistration は登録入力を検証する。
func validateRegistration(username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return model.NewValidationError("ユーザー名、メールアドレス、パスワードは必須です。")
	}
	if len(username) < minUsernameLength {
		return model.NewValidationError(fmt.Sprintf("ユーザー名は%d文字以上で入力してください。", minUsernameLength))
	}
	if !emailPattern.MatchString(email) {
		return model.NewValidationError("メールアドレスの形式が正しくありません。")
	}
	if len(password) < minPasswordLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください。", minPasswordLength))
	}
	return nil
}

// normalizeEmail はメールアドレスを小文字化して前後の空白を除去する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) incRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.IncRegistration(outcome)
	}
}

func (s *Service) incVerification(outcome string) {
	if s.metrics != nil {
		s.metrics.IncVerification(outcome)
	}
}

func (s *Service) incLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.IncLogin(outcome)
	}
}

func (s *Service) incMailDelivery(outcome string) {
	if s.metrics != nil {
		s.metrics.IncMailDelivery(outcome)
	}
}
