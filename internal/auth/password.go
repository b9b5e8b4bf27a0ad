package auth

import "golang.org/x/crypto/bcrypt"

// hashCost is the bcrypt work factor applied to new passwords.
const hashCost = 10

// HashPassword applies a salted adaptive hash to the plaintext password.
// The plaintext is never stored or logged; length validation happens at the
// handler layer before this is called.
func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), hashCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// CheckPassword reports whether the plaintext matches the stored digest. The
// digest comes first, mirroring bcrypt.CompareHashAndPassword. Any error,
// including a malformed digest, yields false.
func CheckPassword(digest, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
