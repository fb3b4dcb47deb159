package handler

import (
	"net/http"

	"schoolmaps/internal/app/storage"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/req"
	"schoolmaps/internal/pkg/resp"
	"schoolmaps/internal/pkg/wire"
)

// HandleUploadBlob stores the multipart "file" part under the "path" form field.
func HandleUploadBlob(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		defer r.MultipartForm.RemoveAll()

		key := r.FormValue("path")
		if err := storage.AuthorizePath(uid(r), key); err != nil {
			resp.Fail(w, r, err)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationFailed, "file"))
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		if err := storage.ValidateUpload(key, contentType, header.Size, deps.Config.MaxUploadBytes); err != nil {
			resp.Fail(w, r, err)
			return
		}

		url, err := deps.Blobs.Put(r.Context(), key, contentType, header.Size, file)
		if err != nil {
			logx.Error(err, "blob upload failed", "path", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, wire.BlobResult{Path: key, URL: url})
	}
}

func HandleDeleteBlob(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input wire.BlobRef
		if customErr := req.BindAndValidate(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := storage.AuthorizePath(uid(r), input.Path); err != nil {
			resp.Fail(w, r, err)
			return
		}

		if err := deps.Blobs.Delete(r.Context(), input.Path); err != nil {
			logx.Error(err, "blob delete failed", "path", input.Path)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// HandleDownloadBlob redirects to a short-lived presigned URL for ?path=.
func HandleDownloadBlob(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("path")
		if err := storage.AuthorizePath(uid(r), key); err != nil {
			resp.Fail(w, r, err)
			return
		}

		url, err := deps.Blobs.PresignDownload(r.Context(), key, storage.DownloadURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
