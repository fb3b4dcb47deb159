package handler

import (
	"net/http"

	"schoolmaps/internal/pkg/auth/jwt"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/req"
	"schoolmaps/internal/pkg/resp"
	"schoolmaps/internal/pkg/wire"
)

// uid of the caller. Routes are behind jwt.RequireIdentity.
func uid(r *http.Request) string {
	return jwt.GetPayloadFromContext(r).ID
}

func respondDoc(w http.ResponseWriter, r *http.Request, doc wire.Document, err error) {
	if err != nil {
		resp.Fail(w, r, err)
		return
	}
	resp.RespondDoc(w, r, &doc)
}

func HandleGetDocument(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.DocRef
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		doc, exists, err := deps.Docs.Get(r.Context(), uid(r), input.Collection, input.ID)
		if err != nil {
			resp.Fail(w, r, err)
			return
		}
		if !exists {
			resp.RespondDoc(w, r, nil)
			return
		}

		resp.RespondDoc(w, r, &doc)
	}
}

// HandleMergeDocument creates the document or merges top-level fields into it.
func HandleMergeDocument(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.DocWrite
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if input.ID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationFailed, "id"))
			return
		}

		doc, err := deps.Docs.Merge(r.Context(), uid(r), input.Collection, input.ID, input.Data)
		respondDoc(w, r, doc, err)
	}
}

func HandleCreateDocument(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.DocWrite
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		doc, err := deps.Docs.Create(r.Context(), uid(r), input.Collection, input.Data)
		respondDoc(w, r, doc, err)
	}
}

func HandleUpdateDocument(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.DocWrite
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if input.ID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationFailed, "id"))
			return
		}

		doc, err := deps.Docs.Update(r.Context(), uid(r), input.Collection, input.ID, input.Data)
		respondDoc(w, r, doc, err)
	}
}

func HandleDeleteDocument(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.DocRef
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Docs.Delete(r.Context(), uid(r), input.Collection, input.ID); err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

func HandleQueryDocuments(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.Query
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		docs, err := deps.Docs.Query(r.Context(), uid(r), input)
		if err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondDocs(w, r, docs)
	}
}

// HandleBatch applies all ops in one transaction.
func HandleBatch(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.Batch
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		ids, err := deps.Docs.Batch(r.Context(), uid(r), input.Ops)
		if err != nil {
			resp.Fail(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, wire.BatchResult{IDs: ids})
	}
}
