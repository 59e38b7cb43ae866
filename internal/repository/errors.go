package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ストア層の分類済みエラー。
// 上位層はエラーメッセージの文字列検査ではなく、これらのセンチネルで分岐する。
var (
	// ErrNotFound は更新・削除対象のレコードが存在しないことを示す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はusersのemail一意制約違反を示す。
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateUsername はusersのusername一意制約違反を示す。
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateName はフォルダ名・タグ名の(name, author_id)一意制約違反を示す。
	ErrDuplicateName = errors.New("name already exists")
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// classifyUniqueViolation は一意制約違反を制約名に応じた
// センチネルエラーに変換する。該当しない場合は元のエラーを返す。
func classifyUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case "users_email_key":
		return ErrDuplicateEmail
	case "users_username_key":
		return ErrDuplicateUsername
	case "folders_name_author_id_key", "tags_name_author_id_key":
		return ErrDuplicateName
	default:
		return err
	}
}
