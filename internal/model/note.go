package model

import "time"

// Note はMarkdownノートを表す。
// ContentがMarkdown原文、HTMLContentはサニタイズ済みのレンダリング結果。
type Note struct {
	ID          string
	Title       string
	Content     string
	HTMLContent string
	Excerpt     string
	AuthorID    string
	FolderID    string // 未分類の場合は空文字列
	TagIDs      []string
	IsPinned    bool
	IsArchived  bool
	IsFavorite  bool
	Version     int
	WordCount   int
	ReadingTime int // 分単位の推定読了時間
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NoteVersion はノート更新時に保存される過去バージョンのスナップショット。
type NoteVersion struct {
	ID                string
	NoteID            string
	Title             string
	Content           string
	Version           int
	AuthorID          string
	ChangeDescription string
	CreatedAt         time.Time
}

// NoteFilter はノート一覧の絞り込み条件を表す。
// nilのフィールドは条件に含めない。
type NoteFilter struct {
	FolderID   string
	TagID      string
	IsPinned   *bool
	IsArchived *bool
	IsFavorite *bool
	SortField  string // created_at, updated_at, title
	SortDesc   bool
}

// Pagination はページネーション情報を表す。
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalNotes  int  `json:"totalNotes"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}
