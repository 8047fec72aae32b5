package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 10
	MaxPasswordLen = 72 // bcrypt ignores input past 72 bytes
)

// BcryptCost is a variable so tests can lower it.
var BcryptCost = 12

var errEmptyPassword = errors.New("password cannot be empty")

// WeakPasswordError lists every requirement a password failed.
type WeakPasswordError struct {
	Problems []string
}

func (e *WeakPasswordError) Error() string {
	return "password " + strings.Join(e.Problems, "; ")
}

// Frequently leaked passwords that satisfy the character classes anyway.
var leakedPasswords = map[string]struct{}{
	"password123!":    {},
	"passw0rd123!":    {},
	"welcome123!":     {},
	"qwerty12345!":    {},
	"letmein12345!":   {},
	"bismillah123!":   {},
	"alhamdulillah1!": {},
	"mashallah123!":   {},
	"iloveyou123!":    {},
	"marriage2024!":   {},
}

type charClass struct {
	problem string
	match   func(rune) bool
}

var requiredClasses = []charClass{
	{"needs an uppercase letter", unicode.IsUpper},
	{"needs a lowercase letter", unicode.IsLower},
	{"needs a digit", unicode.IsDigit},
	{"needs a symbol", func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
}

// ValidatePassword checks length, character classes and the leaked list. It
// reports all problems at once.
func ValidatePassword(password string) error {
	var problems []string

	switch n := len(password); {
	case n < MinPasswordLen:
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	case n > MaxPasswordLen:
		problems = append(problems, fmt.Sprintf("must be at most %d bytes", MaxPasswordLen))
	}

	for _, class := range requiredClasses {
		if strings.IndexFunc(password, class.match) < 0 {
			problems = append(problems, class.problem)
		}
	}

	if _, leaked := leakedPasswords[strings.ToLower(password)]; leaked {
		problems = append(problems, "appears in breach lists")
	}

	if len(problems) > 0 {
		return &WeakPasswordError{Problems: problems}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// CompareDummy spends the same bcrypt work as ComparePassword against a
// fixed hash. Login calls it for unknown emails so response time does not
// reveal which accounts exist.
func CompareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mithaq-dummy-password"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
