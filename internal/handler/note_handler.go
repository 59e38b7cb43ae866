package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/noteit/internal/middleware"
	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/note"
)

// NoteServiceInterface はノートハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	CreateNote(ctx context.Context, authorID string, input note.CreateNoteInput) (*model.Note, error)
	GetNote(ctx context.Context, authorID, noteID string) (*model.Note, error)
	ListNotes(ctx context.Context, authorID string, filter model.NoteFilter, page, limit int) (*note.ListResult, error)
	UpdateNote(ctx context.Context, authorID, noteID string, input note.UpdateNoteInput) (*model.Note, error)
	DeleteNote(ctx context.Context, authorID, noteID string) error
	TogglePin(ctx context.Context, authorID, noteID string) (*model.Note, error)
	ToggleFavorite(ctx context.Context, authorID, noteID string) (*model.Note, error)
	ToggleArchive(ctx context.Context, authorID, noteID string) (*model.Note, error)
	DuplicateNote(ctx context.Context, authorID, noteID string) (*model.Note, error)
	ListVersions(ctx context.Context, authorID, noteID string) ([]*model.NoteVersion, error)
	GetVersion(ctx context.Context, authorID, noteID string, version int) (*model.NoteVersion, error)
	RestoreVersion(ctx context.Context, authorID, noteID string, version int) (*model.Note, error)
}

// NoteHandler はノート管理のHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{
		service: service,
	}
}

// noteRequest はノート作成・更新リクエストのボディ。
// 更新時はnilのフィールドを変更しない。
type noteRequest struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	FolderID *string   `json:"folderId"`
	TagIDs   *[]string `json:"tagIds"`
}

// noteResponse はノートのAPIレスポンス。
type noteResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	HTMLContent string    `json:"htmlContent,omitempty"`
	Excerpt     string    `json:"excerpt"`
	FolderID    string    `json:"folderId,omitempty"`
	TagIDs      []string  `json:"tagIds"`
	IsPinned    bool      `json:"isPinned"`
	IsArchived  bool      `json:"isArchived"`
	IsFavorite  bool      `json:"isFavorite"`
	Version     int       `json:"version"`
	WordCount   int       `json:"wordCount"`
	ReadingTime int       `json:"readingTime"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// noteVersionResponse はノート履歴のAPIレスポンス。
type noteVersionResponse struct {
	ID                string    `json:"id"`
	NoteID            string    `json:"noteId"`
	Title             string    `json:"title"`
	Content           string    `json:"content,omitempty"`
	Version           int       `json:"version"`
	ChangeDescription string    `json:"changeDescription,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ListNotes はノート一覧を絞り込み・ページネーション付きで返す。
// GET /api/notes?folder=&tag=&pinned=&archived=&favorite=&sort=&order=&page=&limit=
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	filter, page, limit := parseListQuery(r)

	result, err := h.service.ListNotes(r.Context(), userID, filter, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	notes := make([]noteResponse, 0, len(result.Notes))
	for _, n := range result.Notes {
		resp := toNoteResponse(n)
		// 一覧ではレンダリング済みHTMLと原文を返さない
		resp.Content = ""
		resp.HTMLContent = ""
		notes = append(notes, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notes":      notes,
		"pagination": result.Pagination,
	})
}

// CreateNote は新しいノートを作成する。
// POST /api/notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	input := note.CreateNoteInput{}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Content != nil {
		input.Content = *req.Content
	}
	if req.FolderID != nil {
		input.FolderID = *req.FolderID
	}
	if req.TagIDs != nil {
		input.TagIDs = *req.TagIDs
	}

	created, err := h.service.CreateNote(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toNoteResponse(created))
}

// GetNote はノートを1件取得する。
// GET /api/notes/:id
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	n, err := h.service.GetNote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toNoteResponse(n))
}

// UpdateNote はノートを部分更新する。
// PATCH /api/notes/:id
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateNote(r.Context(), userID, chi.URLParam(r, "id"), note.UpdateNoteInput{
		Title:    req.Title,
		Content:  req.Content,
		FolderID: req.FolderID,
		TagIDs:   req.TagIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toNoteResponse(updated))
}

// DeleteNote はノートを削除する。履歴もカスケード削除される。
// DELETE /api/notes/:id
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if err := h.service.DeleteNote(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TogglePin はピン留め状態を反転する。
// POST /api/notes/:id/pin
func (h *NoteHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.TogglePin)
}

// ToggleFavorite はお気に入り状態を反転する。
// POST /api/notes/:id/favorite
func (h *NoteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.ToggleFavorite)
}

// ToggleArchive はアーカイブ状態を反転する。
// POST /api/notes/:id/archive
func (h *NoteHandler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.ToggleArchive)
}

func (h *NoteHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, authorID, noteID string) (*model.Note, error)) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	n, err := fn(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toNoteResponse(n))
}

// DuplicateNote はノートを複製する。
// POST /api/notes/:id/duplicate
func (h *NoteHandler) DuplicateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	copied, err := h.service.DuplicateNote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toNoteResponse(copied))
}

// DownloadNote はMarkdown原文をファイルとしてダウンロードさせる。
// GET /api/notes/:id/download
func (h *NoteHandler) DownloadNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	n, err := h.service.GetNote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filename := sanitizeFilename(n.Title) + ".md"
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write([]byte(n.Content))
}

// ListVersions はノートの履歴一覧を返す。本文は含まない。
// GET /api/notes/:id/versions
func (h *NoteHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	versions, err := h.service.ListVersions(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]noteVersionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, toNoteVersionResponse(v))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"versions": resp})
}

// GetVersion は指定バージョンのスナップショットを本文付きで返す。
// GET /api/notes/:id/versions/:version
func (h *NoteHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("バージョン番号は数値で指定してください。"))
		return
	}

	v, err := h.service.GetVersion(r.Context(), userID, chi.URLParam(r, "id"), version)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toNoteVersionResponse(v))
}

// RestoreVersion は指定バージョンの内容でノートを巻き戻す。
// POST /api/notes/:id/versions/:version/restore
func (h *NoteHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("バージョン番号は数値で指定してください。"))
		return
	}

	restored, err := h.service.RestoreVersion(r.Context(), userID, chi.URLParam(r, "id"), version)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toNoteResponse(restored))
}

// --- ヘルパー関数 ---

// parseListQuery は一覧取得のクエリパラメータを解析する。
func parseListQuery(r *http.Request) (model.NoteFilter, int, int) {
	q := r.URL.Query()

	filter := model.NoteFilter{
		FolderID:  q.Get("folder"),
		TagID:     q.Get("tag"),
		SortField: q.Get("sort"),
		SortDesc:  q.Get("order") != "asc",
	}
	filter.IsPinned = parseBoolParam(q.Get("pinned"))
	filter.IsArchived = parseBoolParam(q.Get("archived"))
	filter.IsFavorite = parseBoolParam(q.Get("favorite"))

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return filter, page, limit
}

// parseBoolParam は"true"/"false"をパースする。それ以外はnil（条件に含めない）。
func parseBoolParam(value string) *bool {
	switch value {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

// sanitizeFilename はダウンロードファイル名に使えない文字を置換する。
func sanitizeFilename(title string) string {
	name := strings.TrimSpace(title)
	if name == "" {
		return "untitled"
	}
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-", "|", "-",
	)
	return replacer.Replace(name)
}

// toNoteResponse はmodel.NoteからAPIレスポンスに変換する。
func toNoteResponse(n *model.Note) noteResponse {
	tagIDs := n.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}
	return noteResponse{
		ID:          n.ID,
		Title:       n.Title,
		Content:     n.Content,
		HTMLContent: n.HTMLContent,
		Excerpt:     n.Excerpt,
		FolderID:    n.FolderID,
		TagIDs:      tagIDs,
		IsPinned:    n.IsPinned,
		IsArchived:  n.IsArchived,
		IsFavorite:  n.IsFavorite,
		Version:     n.Version,
		WordCount:   n.WordCount,
		ReadingTime: n.ReadingTime,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// toNoteVersionResponse はmodel.NoteVersionからAPIレスポンスに変換する。
func toNoteVersionResponse(v *model.NoteVersion) noteVersionResponse {
	return noteVersionResponse{
		ID:                v.ID,
		NoteID:            v.NoteID,
		Title:             v.Title,
		Content:           v.Content,
		Version:           v.Version,
		ChangeDescription: v.ChangeDescription,
		CreatedAt:         v.CreatedAt,
	}
}
