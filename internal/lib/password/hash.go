// Package password реализует хеширование и проверку паролей через bcrypt.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GetHash возвращает bcrypt-хэш пароля для хранения в базе данных.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash возвращает nil, если пароль соответствует хэшу.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
