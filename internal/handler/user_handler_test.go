package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/user"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	getProfileFn     func(ctx context.Context, userID string) (*model.User, error)
	updateProfileFn  func(ctx context.Context, userID string, input user.UpdateProfileInput) (*model.User, error)
	changePasswordFn func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, input user.UpdateProfileInput) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, input)
	}
	return nil, nil
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

// --- GET /api/auth/profile テスト ---

func TestUserHandler_GetProfile_ReturnsUser(t *testing.T) {
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.User, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return testUser(), nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.GetProfile(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["username"] != "alice" {
		t.Errorf("username = %v, want alice", body["username"])
	}
	if _, ok := body["passwordHash"]; ok {
		t.Error("response must not contain passwordHash")
	}
	if _, ok := body["refreshToken"]; ok {
		t.Error("response must not contain refreshToken")
	}
}

func TestUserHandler_GetProfile_NoUserIDReturns401(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	w := httptest.NewRecorder()

	h.GetProfile(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- PUT /api/auth/profile テスト ---

func TestUserHandler_UpdateProfile_PassesAllowedFields(t *testing.T) {
	var gotInput user.UpdateProfileInput
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID string, input user.UpdateProfileInput) (*model.User, error) {
			gotInput = input
			u := testUser()
			u.Username = *input.Username
			return u, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile", jsonBody(t, map[string]string{
		"username": "alice2",
		"theme":    "dark",
	}))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotInput.Username == nil || *gotInput.Username != "alice2" {
		t.Errorf("input.Username = %v, want alice2", gotInput.Username)
	}
	if gotInput.Theme == nil || *gotInput.Theme != "dark" {
		t.Errorf("input.Theme = %v, want dark", gotInput.Theme)
	}
	if gotInput.Avatar != nil || gotInput.DefaultFolderID != nil {
		t.Error("unspecified fields must stay nil")
	}
}

func TestUserHandler_UpdateProfile_InvalidBodyReturns400(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile", strings.NewReader("{invalid"))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- PATCH /api/auth/password テスト ---

func TestUserHandler_ChangePassword_Succeeds(t *testing.T) {
	var gotCurrent, gotNew string
	svc := &mockUserService{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			gotCurrent = currentPassword
			gotNew = newPassword
			return nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/auth/password", jsonBody(t, map[string]string{
		"currentPassword": "oldpass123",
		"newPassword":     "newpass456",
	}))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.ChangePassword(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotCurrent != "oldpass123" || gotNew != "newpass456" {
		t.Errorf("passwords = (%q, %q), want (oldpass123, newpass456)", gotCurrent, gotNew)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] == "" {
		t.Error("message should not be empty")
	}
}

func TestUserHandler_ChangePassword_WrongCurrentReturns400(t *testing.T) {
	svc := &mockUserService{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			return model.NewPasswordMismatchError()
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPatch, "/api/auth/password", jsonBody(t, map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "newpass456",
	}))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.ChangePassword(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}

	apiErr := parseAPIErrorResponse(t, w)
	if apiErr["code"] != "PASSWORD_MISMATCH" {
		t.Errorf("code = %q, want PASSWORD_MISMATCH", apiErr["code"])
	}
}
