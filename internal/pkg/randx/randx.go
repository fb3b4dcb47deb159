/*
Package randx provides cryptographically secure random identifiers.

It generates Base62 password reset tokens and UUID document ids.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// ResetTokenLength is the length of password reset tokens.
	ResetTokenLength = 32
)

// Base62 returns a random Base62 string of the given length, drawn from crypto/rand.
func Base62(length int) (string, error) {
	result := make([]byte, length)

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// ResetToken generates a password reset token.
func ResetToken() (string, error) {
	return Base62(ResetTokenLength)
}

// IsValidResetToken checks the shape of a reset token before it is looked up.
func IsValidResetToken(token string) bool {
	if len(token) != ResetTokenLength {
		return false
	}

	for _, char := range token {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// DocumentID generates a UUID v4 string used as a document id.
func DocumentID() string {
	return uuid.New().String()
}
