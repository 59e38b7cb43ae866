package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/noteit/internal/folder"
	"github.com/hitoshi/noteit/internal/middleware"
	"github.com/hitoshi/noteit/internal/model"
)

// FolderServiceInterface はフォルダハンドラーが必要とするサービスインターフェース。
type FolderServiceInterface interface {
	ListFolders(ctx context.Context, authorID string) ([]folder.FolderInfo, error)
	GetFolder(ctx context.Context, authorID, folderID string) (*folder.FolderInfo, error)
	CreateFolder(ctx context.Context, authorID string, input folder.CreateFolderInput) (*model.Folder, error)
	UpdateFolder(ctx context.Context, authorID, folderID string, input folder.UpdateFolderInput) (*model.Folder, error)
	DeleteFolder(ctx context.Context, authorID, folderID string) error
	ReorderFolders(ctx context.Context, authorID string, folderIDs []string) error
}

// FolderHandler はフォルダ管理のHTTPハンドラー。
type FolderHandler struct {
	service FolderServiceInterface
}

// NewFolderHandler はFolderHandlerを生成する。
func NewFolderHandler(service FolderServiceInterface) *FolderHandler {
	return &FolderHandler{
		service: service,
	}
}

// folderRequest はフォルダ作成・更新リクエストのボディ。
type folderRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	ParentID    *string `json:"parentId"`
}

// reorderRequest はフォルダ並べ替えリクエストのボディ。
type reorderRequest struct {
	FolderIDs []string `json:"folderIds"`
}

// folderResponse はフォルダのAPIレスポンス。
type folderResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parentId,omitempty"`
	Color       string    `json:"color"`
	IsDefault   bool      `json:"isDefault"`
	Position    int       `json:"position"`
	NoteCount   int       `json:"noteCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListFolders はフォルダ一覧をノート数付きで返す。
// GET /api/folders
func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	folders, err := h.service.ListFolders(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]folderResponse, 0, len(folders))
	for _, f := range folders {
		resp = append(resp, toFolderInfoResponse(f))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"folders": resp})
}

// GetFolder はフォルダを1件取得する。
// GET /api/folders/:id
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	f, err := h.service.GetFolder(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toFolderInfoResponse(*f))
}

// CreateFolder は新しいフォルダを作成する。
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	input := folder.CreateFolderInput{}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Color != nil {
		input.Color = *req.Color
	}
	if req.ParentID != nil {
		input.ParentID = *req.ParentID
	}

	created, err := h.service.CreateFolder(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toFolderResponse(created, 0))
}

// UpdateFolder はフォルダを部分更新する。
// PUT /api/folders/:id
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req folderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateFolder(r.Context(), userID, chi.URLParam(r, "id"), folder.UpdateFolderInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		ParentID:    req.ParentID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toFolderResponse(updated, 0))
}

// DeleteFolder はフォルダを削除する。ノートが残っている場合は拒否する。
// DELETE /api/folders/:id
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if err := h.service.DeleteFolder(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderFolders はフォルダの表示順を一括更新する。
// PUT /api/folders/reorder
func (h *FolderHandler) ReorderFolders(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if err := h.service.ReorderFolders(r.Context(), userID, req.FolderIDs); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "フォルダの並び順を更新しました。",
	})
}

// --- ヘルパー関数 ---

// toFolderResponse はmodel.FolderからAPIレスポンスに変換する。
func toFolderResponse(f *model.Folder, noteCount int) folderResponse {
	return folderResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		ParentID:    f.ParentID,
		Color:       f.Color,
		IsDefault:   f.IsDefault,
		Position:    f.Position,
		NoteCount:   noteCount,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// toFolderInfoResponse はノート数付きフォルダからAPIレスポンスに変換する。
func toFolderInfoResponse(info folder.FolderInfo) folderResponse {
	return toFolderResponse(info.Folder, info.NoteCount)
}
