package utils

import "golang.org/x/crypto/bcrypt"

// HashAPIKey returns a bcrypt hash of the provided admin API key, suitable
// for storing in ADMIN_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckAPIKey compares a stored bcrypt hash with a presented key.
func CheckAPIKey(hashedKey, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key)) == nil
}
