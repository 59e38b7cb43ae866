package model

import "time"

// Tag はノートに付与するタグを表す。
// 名前はユーザーごとに一意。UsageCountはnote_tagsから算出した実数。
type Tag struct {
	ID          string
	Name        string
	AuthorID    string
	Color       string
	Description string
	UsageCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
