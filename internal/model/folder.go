package model

import "time"

// Folder はノートを整理するフォルダを表す。
// 名前はユーザーごとに一意。
type Folder struct {
	ID          string
	Name        string
	Description string
	AuthorID    string
	ParentID    string // ルートフォルダの場合は空文字列
	Color       string
	IsDefault   bool
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
