/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"net/http"

	"schoolmaps/internal/pkg/auth/jwt"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/req"
	"schoolmaps/internal/pkg/resp"
	"schoolmaps/internal/pkg/wire"
)

// HandleRegister creates an account and returns a signed-in identity.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input wire.Registration
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, err := deps.Identity.Register(r.Context(), input.Email, input.Password, input.DisplayName)
		if err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, result)
	}
}

// HandleLogin verifies user credentials and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input wire.Credentials
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, err := deps.Identity.SignIn(r.Context(), input.Email, input.Password)
		if err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, result)
	}
}

// HandleLogout revokes the presented token. Anonymous callers succeed too.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondSuccess(w, r, nil)
			return
		}

		if err := deps.Identity.SignOut(r.Context(), payload); err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMe returns the identity behind the presented token.
func HandleMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		identity, err := deps.Identity.CurrentUser(r.Context(), payload)
		if err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, identity)
	}
}

// HandlePasswordReset mails a reset link. Unknown addresses get the same answer.
func HandlePasswordReset(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.PasswordResetRequest
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Identity.RequestPasswordReset(r.Context(), input.Email); err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandlePasswordResetConfirm sets a new password using a mailed reset token.
func HandlePasswordResetConfirm(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.PasswordResetConfirm
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Identity.ConfirmPasswordReset(r.Context(), input.Token, input.Password); err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
