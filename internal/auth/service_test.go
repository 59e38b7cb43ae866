package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	updateRefreshTokenFn func(ctx context.Context, userID, refreshToken string) error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error {
	if m.updateRefreshTokenFn != nil {
		return m.updateRefreshTokenFn(ctx, userID, refreshToken)
	}
	return nil
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	return nil
}
func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return nil
}

// memStore はテスト用のインメモリ一時ストア。TTLは無視する。
type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	b, _ := json.Marshal(value)
	s.data[key] = b
}
func (s *memStore) Get(ctx context.Context, key string, dest any) bool {
	b, ok := s.data[key]
	if !ok {
		return false
	}
	_ = json.Unmarshal(b, dest)
	return true
}
func (s *memStore) Delete(ctx context.Context, key string) {
	delete(s.data, key)
}

// downStore は到達不能な一時ストアの縮退動作を模す。
type downStore struct{}

func (downStore) Set(ctx context.Context, key string, value any, ttl time.Duration) {}
func (downStore) Get(ctx context.Context, key string, dest any) bool                { return false }
func (downStore) Delete(ctx context.Context, key string)                            {}

type mockMailer struct {
	sendFn func(ctx context.Context, toEmail, username, token string) error
	sent   []string
}

func (m *mockMailer) SendVerificationMail(ctx context.Context, toEmail, username, token string) error {
	m.sent = append(m.sent, token)
	if m.sendFn != nil {
		return m.sendFn(ctx, toEmail, username, token)
	}
	return nil
}

func newTestTokenService() *TokenService {
	return NewTokenService([]byte("access-secret"), []byte("refresh-secret"), TokenServiceConfig{
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		VerificationTTL: time.Hour,
	})
}

func newTestService(userRepo repository.UserRepository, store *memStore, mailer *mockMailer) *Service {
	var m Mailer
	if mailer != nil {
		m = mailer
	}
	return NewService(userRepo, store, newTestTokenService(), m, nil, time.Hour)
}

// apiErrorCode はエラーからAPIErrorのコードを取り出す。
func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	return apiErr.Code
}

// --- 登録 ---

func TestRegister_CreatesPendingRecord(t *testing.T) {
	store := newMemStore()
	mailer := &mockMailer{}
	svc := newTestService(&mockUserRepo{}, store, mailer)

	pending, err := svc.Register(context.Background(), "alice", "Alice@Example.com", "password123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// メールアドレスは正規化される
	if pending.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %s", pending.Email)
	}
	if pending.PasswordHash == "" || pending.PasswordHash == "password123" {
		t.Error("password should be hashed")
	}

	// 確認メールにはトークンが含まれ、verify:/pending: の両キーが存在する
	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	token := mailer.sent[0]

	var stored model.PendingRegistration
	if !store.Get(context.Background(), "verify:"+token, &stored) {
		t.Fatal("verify record not found in store")
	}
	if stored.Username != "alice" {
		t.Errorf("expected username alice, got %s", stored.Username)
	}

	var index model.PendingIndex
	if !store.Get(context.Background(), "pending:alice@example.com", &index) {
		t.Fatal("pending index not found in store")
	}
	if index.VerificationToken != token {
		t.Error("pending index does not reference the verification token")
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "", "a@example.com", "password123"},
		{"short username", "ab", "a@example.com", "password123"},
		{"empty email", "alice", "", "password123"},
		{"malformed email", "alice", "not-an-email", "password123"},
		{"empty password", "alice", "a@example.com", ""},
		{"short password", "alice", "a@example.com", "12345"},
	}

	svc := newTestService(&mockUserRepo{}, newMemStore(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
				t.Errorf("expected %s, got %s", model.ErrCodeValidation, code)
			}
		})
	}
}

func TestRegister_DuplicateDurableUser(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "u1", Email: email}, nil
		},
	}
	svc := newTestService(userRepo, newMemStore(), nil)

	_, err := svc.Register(context.Background(), "alice", "a@example.com", "password123")
	if code := apiErrorCode(t, err); code != model.ErrCodeEmailInUse {
		t.Errorf("expected %s, got %s", model.ErrCodeEmailInUse, code)
	}
}

func TestRegister_DuplicatePendingRegistration(t *testing.T) {
	store := newMemStore()
	svc := newTestService(&mockUserRepo{}, store, nil)

	if _, err := svc.Register(context.Background(), "alice", "a@example.com", "password123"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	// 確認待ちの間は同じメールアドレスで再登録できない
	_, err := svc.Register(context.Background(), "alice2", "a@example.com", "password456")
	if code := apiErrorCode(t, err); code != model.ErrCodeEmailInUse {
		t.Errorf("expected %s, got %s", model.ErrCodeEmailInUse, code)
	}
}

func TestRegister_MailFailureDoesNotFailRegistration(t *testing.T) {
	mailer := &mockMailer{
		sendFn: func(ctx context.Context, toEmail, username, token string) error {
			return errors.New("smtp unreachable")
		},
	}
	svc := newTestService(&mockUserRepo{}, newMemStore(), mailer)

	if _, err := svc.Register(context.Background(), "alice", "a@example.com", "password123"); err != nil {
		t.Fatalf("Register should succeed despite mail failure: %v", err)
	}
}

func TestRegister_DegradedStoreStillAccepts(t *testing.T) {
	// 一時ストアが落ちている場合、重複チェックはミスになり登録は受け付けられる
	svc := NewService(&mockUserRepo{}, downStore{}, newTestTokenService(), nil, nil, time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "a@example.com", "password123"); err != nil {
		t.Fatalf("Register should succeed with degraded store: %v", err)
	}
}

// --- メール確認 ---

func TestVerifyEmail_CreatesUserAndConsumesToken(t *testing.T) {
	store := newMemStore()
	mailer := &mockMailer{}

	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := newTestService(userRepo, store, mailer)

	pending, err := svc.Register(context.Background(), "alice", "a@example.com", "password123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := mailer.sent[0]

	user, err := svc.VerifyEmail(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	if created == nil {
		t.Fatal("user was not persisted")
	}
	if !user.IsVerified {
		t.Error("user should be verified")
	}
	if user.PasswordHash != pending.PasswordHash {
		t.Error("password hash should carry over from the pending record")
	}
	if user.Email != "a@example.com" || user.Username != "alice" {
		t.Errorf("unexpected user identity: %s / %s", user.Email, user.Username)
	}

	// トークンは一度しか使えない
	_, err = svc.VerifyEmail(context.Background(), token)
	if code := apiErrorCode(t, err); code != model.ErrCodeTokenNotFound {
		t.Errorf("expected %s on second use, got %s", model.ErrCodeTokenNotFound, code)
	}

	// pending: 側の逆引きも消えている
	var index model.PendingIndex
	if store.Get(context.Background(), "pending:a@example.com", &index) {
		t.Error("pending index should be deleted after verification")
	}
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	expired := NewTokenService([]byte("access-secret"), []byte("refresh-secret"), TokenServiceConfig{
		VerificationTTL: -time.Minute,
	})
	token, err := expired.IssueVerificationToken("a@example.com", "alice")
	if err != nil {
		t.Fatalf("IssueVerificationToken failed: %v", err)
	}

	svc := newTestService(&mockUserRepo{}, newMemStore(), nil)
	_, err = svc.VerifyEmail(context.Background(), token)
	if code := apiErrorCode(t, err); code != model.ErrCodeTokenExpired {
		t.Errorf("expected %s, got %s", model.ErrCodeTokenExpired, code)
	}
}

func TestVerifyEmail_InvalidToken(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, newMemStore(), nil)

	_, err := svc.VerifyEmail(context.Background(), "not.a.jwt")
	if code := apiErrorCode(t, err); code != model.ErrCodeTokenInvalid {
		t.Errorf("expected %s, got %s", model.ErrCodeTokenInvalid, code)
	}
}

func TestVerifyEmail_MissingToken(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, newMemStore(), nil)

	_, err := svc.VerifyEmail(context.Background(), "")
	if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
		t.Errorf("expected %s, got %s", model.ErrCodeValidation, code)
	}
}

func TestVerifyEmail_EmailMismatch(t *testing.T) {
	store := newMemStore()
	svc := newTestService(&mockUserRepo{}, store, nil)

	// 有効なトークンに別人の仮登録レコードを対応づける
	token, err := newTestTokenService().IssueVerificationToken("a@example.com", "alice")
	if err != nil {
		t.Fatalf("IssueVerificationToken failed: %v", err)
	}
	store.Set(context.Background(), "verify:"+token, &model.PendingRegistration{
		Username: "bob",
		Email:    "b@example.com",
	}, time.Hour)

	_, err = svc.VerifyEmail(context.Background(), token)
	if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
		t.Errorf("expected %s, got %s", model.ErrCodeValidation, code)
	}
}

func TestVerifyEmail_DuplicateAtCreationKeepsPendingRecord(t *testing.T) {
	store := newMemStore()
	mailer := &mockMailer{}
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := newTestService(userRepo, store, mailer)

	if _, err := svc.Register(context.Background(), "alice", "a@example.com", "password123"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := mailer.sent[0]

	_, err := svc.VerifyEmail(context.Background(), token)
	if code := apiErrorCode(t, err); code != model.ErrCodeEmailInUse {
		t.Errorf("expected %s, got %s", model.ErrCodeEmailInUse, code)
	}

	// 作成に失敗した場合、確認待ちレコードは残る
	var stored model.PendingRegistration
	if !store.Get(context.Background(), "verify:"+token, &stored) {
		t.Error("pending record should survive a failed creation")
	}
}

// --- ログイン ---

func verifiedUser(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	return &model.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "a@example.com",
		PasswordHash: hash,
		IsVerified:   true,
	}
}

func TestLogin_Success(t *testing.T) {
	user := verifiedUser(t, "password123")

	var savedRefresh string
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return user, nil
		},
		updateRefreshTokenFn: func(ctx context.Context, userID, refreshToken string) error {
			savedRefresh = refreshToken
			return nil
		},
	}
	svc := newTestService(userRepo, newMemStore(), nil)

	result, err := svc.Login(context.Background(), "A@Example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if savedRefresh != result.RefreshToken {
		t.Error("refresh token should be persisted")
	}

	// アクセストークンはアクセス鍵で、リフレッシュトークンはリフレッシュ鍵で検証できる
	ts := newTestTokenService()
	claims, err := ts.ValidateAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("expected user u1, got %s", claims.UserID)
	}
	if _, err := ts.ValidateAccessToken(result.RefreshToken); err == nil {
		t.Error("refresh token must not validate against the access secret")
	}
}

func TestLogin_UnknownEmailIsUnauthorized(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, newMemStore(), nil)

	_, err := svc.Login(context.Background(), "nobody@example.com", "password123")
	if code := apiErrorCode(t, err); code != model.ErrCodeUnauthorized {
		t.Errorf("expected %s, got %s", model.ErrCodeUnauthorized, code)
	}
}

func TestLogin_PendingRegistrationDisclosesNotVerified(t *testing.T) {
	store := newMemStore()
	svc := newTestService(&mockUserRepo{}, store, nil)

	if _, err := svc.Register(context.Background(), "alice", "a@example.com", "password123"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// 確認待ちの本人には未確認であることを開示する
	_, err := svc.Login(context.Background(), "a@example.com", "password123")
	if code := apiErrorCode(t, err); code != model.ErrCodeEmailNotVerified {
		t.Errorf("expected %s, got %s", model.ErrCodeEmailNotVerified, code)
	}
}

func TestLogin_WrongPasswordIsUnauthorized(t *testing.T) {
	user := verifiedUser(t, "password123")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return user, nil
		},
	}
	svc := newTestService(userRepo, newMemStore(), nil)

	_, err := svc.Login(context.Background(), "a@example.com", "wrong-password")
	if code := apiErrorCode(t, err); code != model.ErrCodeUnauthorized {
		t.Errorf("expected %s, got %s", model.ErrCodeUnauthorized, code)
	}
}

func TestLogin_UnverifiedUserIsForbidden(t *testing.T) {
	user := verifiedUser(t, "password123")
	user.IsVerified = false
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return user, nil
		},
	}
	svc := newTestService(userRepo, newMemStore(), nil)

	_, err := svc.Login(context.Background(), "a@example.com", "password123")
	if code := apiErrorCode(t, err); code != model.ErrCodeEmailNotVerified {
		t.Errorf("expected %s, got %s", model.ErrCodeEmailNotVerified, code)
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, newMemStore(), nil)

	_, err := svc.Login(context.Background(), "", "")
	if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
		t.Errorf("expected %s, got %s", model.ErrCodeValidation, code)
	}
}

// --- ログアウト ---

func TestLogout_ClearsStoredRefreshToken(t *testing.T) {
	var clearedFor string
	userRepo := &mockUserRepo{
		updateRefreshTokenFn: func(ctx context.Context, userID, refreshToken string) error {
			if refreshToken == "" {
				clearedFor = userID
			}
			return nil
		},
	}
	svc := newTestService(userRepo, newMemStore(), nil)

	refreshToken, err := newTestTokenService().IssueRefreshToken("u1")
	if err != nil {
		t.Fatalf("IssueRefreshToken failed: %v", err)
	}

	if err := svc.Logout(context.Background(), refreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if clearedFor != "u1" {
		t.Errorf("expected refresh token cleared for u1, got %q", clearedFor)
	}
}

func TestLogout_InvalidTokenIsNoop(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, newMemStore(), nil)

	if err := svc.Logout(context.Background(), "garbage"); err != nil {
		t.Fatalf("Logout with invalid token should be a no-op: %v", err)
	}
	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("Logout with empty token should be a no-op: %v", err)
	}
}
