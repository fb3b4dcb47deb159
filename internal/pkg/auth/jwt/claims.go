package jwt

import "github.com/golang-jwt/jwt"

const (
	// UserTypeRegistered marks tokens issued to email/password accounts.
	UserTypeRegistered = "registered"
)

// Payload defines the JWT claims issued by the identity service.
type Payload struct {
	// StandardClaims carries exp, iat, iss and the token id (jti) used for revocation.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the user id (uid) the token was issued to.
	ID string `json:"id"`

	// Email is the account email at issue time.
	Email string `json:"email"`

	// UserType defines the role of the token holder.
	UserType string `json:"user_type"`
}
