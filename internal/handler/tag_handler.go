package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/noteit/internal/middleware"
	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/note"
	"github.com/hitoshi/noteit/internal/tag"
)

// TagServiceInterface はタグハンドラーが必要とするサービスインターフェース。
type TagServiceInterface interface {
	ListTags(ctx context.Context, authorID string) ([]*model.Tag, error)
	GetTag(ctx context.Context, authorID, tagID string) (*model.Tag, error)
	CreateTag(ctx context.Context, authorID string, input tag.CreateTagInput) (*model.Tag, error)
	UpdateTag(ctx context.Context, authorID, tagID string, input tag.UpdateTagInput) (*model.Tag, error)
	DeleteTag(ctx context.Context, authorID, tagID string) error
	Autocomplete(ctx context.Context, authorID, query string) ([]*model.Tag, error)
}

// TagNoteLister はタグ別ノート一覧に必要なノートサービスの部分集合。
type TagNoteLister interface {
	ListNotes(ctx context.Context, authorID string, filter model.NoteFilter, page, limit int) (*note.ListResult, error)
}

// TagHandler はタグ管理のHTTPハンドラー。
type TagHandler struct {
	service    TagServiceInterface
	noteLister TagNoteLister
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(service TagServiceInterface, noteLister TagNoteLister) *TagHandler {
	return &TagHandler{
		service:    service,
		noteLister: noteLister,
	}
}

// tagRequest はタグ作成・更新リクエストのボディ。
type tagRequest struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
}

// tagResponse はタグのAPIレスポンス。
type tagResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	UsageCount  int       `json:"usageCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListTags はタグ一覧を使用数付きで返す。
// GET /api/tags
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	tags, err := h.service.ListTags(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		resp = append(resp, toTagResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tags": resp})
}

// GetTag はタグを1件取得する。
// GET /api/tags/:id
func (h *TagHandler) GetTag(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	t, err := h.service.GetTag(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTagResponse(t))
}

// CreateTag は新しいタグを作成する。
// POST /api/tags
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	input := tag.CreateTagInput{}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Color != nil {
		input.Color = *req.Color
	}
	if req.Description != nil {
		input.Description = *req.Description
	}

	created, err := h.service.CreateTag(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTagResponse(created))
}

// UpdateTag はタグを部分更新する。
// PATCH /api/tags/:id
func (h *TagHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateTag(r.Context(), userID, chi.URLParam(r, "id"), tag.UpdateTagInput{
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTagResponse(updated))
}

// DeleteTag はタグを削除する。ノートとの関連もすべて解除される。
// DELETE /api/tags/:id
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if err := h.service.DeleteTag(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListNotesByTag はタグが付いたノート一覧をページネーション付きで返す。
// GET /api/tags/:id/notes?page=&limit=
func (h *TagHandler) ListNotesByTag(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	tagID := chi.URLParam(r, "id")

	// タグの存在と所有を先に確認する
	t, err := h.service.GetTag(r.Context(), userID, tagID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.noteLister.ListNotes(r.Context(), userID, model.NoteFilter{TagID: tagID}, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	notes := make([]noteResponse, 0, len(result.Notes))
	for _, n := range result.Notes {
		resp := toNoteResponse(n)
		resp.Content = ""
		resp.HTMLContent = ""
		notes = append(notes, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tag":        toTagResponse(t),
		"notes":      notes,
		"pagination": result.Pagination,
	})
}

// Autocomplete はタグ名の補完候補を使用数順で返す。
// GET /api/tags/autocomplete/:query
func (h *TagHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	tags, err := h.service.Autocomplete(r.Context(), userID, chi.URLParam(r, "query"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		resp = append(resp, toTagResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tags": resp})
}

// --- ヘルパー関数 ---

// toTagResponse はmodel.TagからAPIレスポンスに変換する。
func toTagResponse(t *model.Tag) tagResponse {
	return tagResponse{
		ID:          t.ID,
		Name:        t.Name,
		Color:       t.Color,
		Description: t.Description,
		UsageCount:  t.UsageCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
