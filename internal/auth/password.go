package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost はパスワードハッシュのコストファクタ。
const bcryptCost = 10

// ErrPasswordMismatch はパスワードがハッシュと一致しないことを示す。
var ErrPasswordMismatch = errors.New("password does not match hash")

// HashPassword は平文パスワードのbcryptハッシュを生成する。
// 平文はログにも戻り値にも含めない。
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// ComparePasswordAndHash は平文パスワードがハッシュと一致するか検証する。
// 不一致の場合はErrPasswordMismatchを返す。
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to compare password: %w", err)
	}
	return nil
}
