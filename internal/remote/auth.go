package remote

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/pow"
	"schoolmaps/internal/pkg/wire"
	"schoolmaps/internal/session"
)

// Auth is the identity stream of the server. The identity of a stored token is
// restored by Restore; sign-in and registration emit the new identity and sign-out
// emits none.
type Auth struct {
	c *Client

	mu        sync.Mutex
	listeners map[int]func(*session.Identity)
	next      int
	known     bool
	current   *session.Identity
}

func NewAuth(c *Client) *Auth {
	return &Auth{c: c, listeners: map[int]func(*session.Identity){}}
}

// Subscribe registers fn and, once the identity is known, calls it with the current one.
func (a *Auth) Subscribe(fn func(*session.Identity)) func() {
	a.mu.Lock()
	id := a.next
	a.next++
	a.listeners[id] = fn
	known, current := a.known, copyIdentity(a.current)
	a.mu.Unlock()

	if known {
		fn(current)
	}

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Auth) emit(id *session.Identity) {
	a.mu.Lock()
	a.known = true
	a.current = copyIdentity(id)
	fns := make([]func(*session.Identity), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

func copyIdentity(id *session.Identity) *session.Identity {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func toIdentity(w wire.Identity) session.Identity {
	return session.Identity{UID: w.UID, Email: w.Email, DisplayName: w.DisplayName, PhotoURL: w.PhotoURL}
}

// Restore resolves the stored token into an identity and emits the result. A token
// the server rejects is dropped; an unreachable server leaves it for the next start.
func (a *Auth) Restore(ctx context.Context) error {
	if a.c.Token() == "" {
		a.emit(nil)
		return nil
	}

	var id wire.Identity
	err := a.c.get(ctx, "/api/auth/me", &id)
	switch {
	case err == nil:
		v := toIdentity(id)
		a.emit(&v)
		return nil
	case errs.Is(err, errs.ErrUnauthorized):
		a.c.SetToken("")
		a.emit(nil)
		return nil
	default:
		a.emit(nil)
		return err
	}
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (session.Identity, error) {
	var res wire.AuthResult
	if err := a.c.post(ctx, "/api/auth/login", wire.Credentials{Email: email, Password: password}, &res); err != nil {
		return session.Identity{}, authError(err)
	}
	return a.signedIn(res), nil
}

func (a *Auth) Register(ctx context.Context, email, password, displayName string) (session.Identity, error) {
	header, err := a.proof(ctx)
	if err != nil {
		return session.Identity{}, authError(err)
	}

	var res wire.AuthResult
	in := wire.Registration{Email: email, Password: password, DisplayName: displayName}
	if err := a.c.call(ctx, http.MethodPost, "/api/auth/register", in, &res, header); err != nil {
		return session.Identity{}, authError(err)
	}
	return a.signedIn(res), nil
}

func (a *Auth) signedIn(res wire.AuthResult) session.Identity {
	a.c.SetToken(res.Token)
	id := toIdentity(res.Identity)
	a.emit(&id)
	return id
}

// SignOut revokes the token on the server and forgets it locally. The local sign-out
// happens even when the server cannot be reached.
func (a *Auth) SignOut(ctx context.Context) error {
	if err := a.c.post(ctx, "/api/auth/logout", nil, nil); err != nil {
		a.c.logger.Warn().Err(err).Msg("server sign-out failed, signing out locally")
	}
	a.c.SetToken("")
	a.emit(nil)
	return nil
}

func (a *Auth) SendPasswordReset(ctx context.Context, email string) error {
	header, err := a.proof(ctx)
	if err != nil {
		return authError(err)
	}
	err = a.c.call(ctx, http.MethodPost, "/api/auth/password-reset", wire.PasswordResetRequest{Email: email}, nil, header)
	return authError(err)
}

// ConfirmPasswordReset sets a new password with a mailed reset token.
func (a *Auth) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	err := a.c.post(ctx, "/api/auth/password-reset/confirm", wire.PasswordResetConfirm{Token: token, Password: password}, nil)
	return authError(err)
}

// proof solves a proof-of-work challenge and returns the header carrying the token.
func (a *Auth) proof(ctx context.Context) (http.Header, error) {
	var challenge pow.Challenge
	if err := a.c.get(ctx, "/api/pow/challenge", &challenge); err != nil {
		return nil, err
	}

	counter, err := pow.Solve(ctx, challenge)
	if err != nil {
		return nil, err
	}

	var token wire.PowToken
	if err := a.c.post(ctx, "/api/pow/verify", wire.PowProof{Nonce: challenge.Nonce, Counter: counter}, &token); err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(pow.TokenHeaderKey, token.Token)
	return h, nil
}

// authError maps server error codes onto the session's closed set.
func authError(err error) error {
	if err == nil {
		return nil
	}

	code := session.AuthUnknown
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		switch customErr.Code {
		case errs.ErrInvalidEmail:
			code = session.AuthInvalidEmail
		case errs.ErrInvalidCredentials:
			code = session.AuthInvalidCredentials
		case errs.ErrEmailInUse:
			code = session.AuthEmailInUse
		case errs.ErrWeakPassword:
			code = session.AuthWeakPassword
		}
	}
	return &session.AuthError{Code: code, Err: err}
}
