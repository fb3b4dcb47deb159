package handler

import (
	"errors"
	"net/http"

	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/pow"
	"schoolmaps/internal/pkg/req"
	"schoolmaps/internal/pkg/resp"
	"schoolmaps/internal/pkg/wire"
)

// HandlePowChallenge hands out a fresh proof-of-work challenge.
func HandlePowChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Pow.NewChallenge())
	}
}

// HandlePowVerify exchanges a solved challenge for a one-shot proof token.
func HandlePowVerify(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.PowProof
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, err := deps.Pow.ValidateProof(input.Nonce, input.Counter)
		if err != nil {
			switch {
			case errors.Is(err, pow.ErrProofTooWeak), errors.Is(err, pow.ErrNonceInvalid), errors.Is(err, pow.ErrNonceConsumed):
				logx.Warn("PoW proof rejected", "error", err)
				resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeInvalid))
			default:
				logx.Error(err, "PoW validation failed")
				resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeInternal))
			}
			return
		}

		resp.RespondSuccess(w, r, wire.PowToken{Token: token})
	}
}
