/*
Package pow implements the Proof-of-Work gate placed in front of account creation
and password reset mail.

A client asks for a challenge (nonce plus difficulty), searches for a counter whose
SHA-256 of nonce+counter starts with difficulty hex zeros, and trades the solution for
a short-lived proof token. The token is consumed by the first gated request that
presents it.
*/
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/resp"

	"github.com/google/uuid"
)

const (
	// TokenHeaderKey is the HTTP header carrying the proof token.
	TokenHeaderKey = "X-PoW-Token"

	// ProofTokenDuration is the validity period of a proof token.
	ProofTokenDuration = 30 * time.Second

	// NonceExpiryDuration is the validity period of a challenge nonce.
	NonceExpiryDuration = 5 * time.Minute
)

var (
	ErrNonceInvalid   = errors.New("nonce expired or invalid")
	ErrProofTooWeak   = errors.New("proof does not meet difficulty requirement")
	ErrNonceConsumed  = errors.New("nonce consumed by concurrent request")
	ErrSolveCancelled = errors.New("proof search cancelled")
)

// Challenge is handed to clients by the challenge endpoint.
type Challenge struct {
	Nonce      string `json:"nonce"`
	Difficulty int    `json:"difficulty"`
}

// Manager tracks outstanding nonces and issued proof tokens. It is safe for concurrent use.
type Manager struct {
	difficulty int

	mu         sync.Mutex
	nonceStore map[string]time.Time
	tokenStore map[string]time.Time

	now func() time.Time
}

// NewManager creates a Manager requiring difficulty leading zeros. Expired entries are
// swept every minute until ctx is cancelled.
func NewManager(ctx context.Context, difficulty int) *Manager {
	m := &Manager{
		difficulty: difficulty,
		nonceStore: make(map[string]time.Time),
		tokenStore: make(map[string]time.Time),
		now:        time.Now,
	}

	go m.cleanupExpiredEntries(ctx)

	return m
}

// NewChallenge registers and returns a fresh challenge.
func (m *Manager) NewChallenge() Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := uuid.New().String()
	m.nonceStore[nonce] = m.now().Add(NonceExpiryDuration)

	return Challenge{Nonce: nonce, Difficulty: m.difficulty}
}

// ValidateProof checks counter against nonce and, on success, consumes the nonce and
// issues a proof token.
func (m *Manager) ValidateProof(nonce, counter string) (string, error) {
	if !Verify(nonce, counter, m.difficulty) {
		return "", ErrProofTooWeak
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.nonceStore[nonce]
	if !ok {
		return "", ErrNonceInvalid
	}
	delete(m.nonceStore, nonce)

	if m.now().After(expiry) {
		return "", ErrNonceInvalid
	}

	token := uuid.New().String()
	m.tokenStore[token] = m.now().Add(ProofTokenDuration)

	return token, nil
}

// ConsumeProofToken reports whether r carries an unexpired proof token and spends it.
// The token is read from the X-PoW-Token header or the pow_token query parameter.
func (m *Manager) ConsumeProofToken(r *http.Request) bool {
	token := r.Header.Get(TokenHeaderKey)
	if token == "" {
		token = r.URL.Query().Get("pow_token")
	}
	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.tokenStore[token]
	if !ok {
		return false
	}
	delete(m.tokenStore, token)

	return !m.now().After(expiry)
}

// Middleware answers ErrPowChallengeRequired unless the request spends a valid proof token.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.ConsumeProofToken(r) {
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) cleanupExpiredEntries(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for nonce, expiry := range m.nonceStore {
		if now.After(expiry) {
			delete(m.nonceStore, nonce)
		}
	}
	for token, expiry := range m.tokenStore {
		if now.After(expiry) {
			delete(m.tokenStore, token)
		}
	}
}

// Verify reports whether sha256(nonce+counter) has difficulty leading hex zeros.
func Verify(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// Solve searches counters 0, 1, 2, ... until one satisfies the challenge.
func Solve(ctx context.Context, c Challenge) (string, error) {
	for i := 0; ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", ErrSolveCancelled
			}
		}
		counter := strconv.Itoa(i)
		if Verify(c.Nonce, counter, c.Difficulty) {
			return counter, nil
		}
	}
}
