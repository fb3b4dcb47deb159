/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrValidationFailed:      {Code: ErrValidationFailed, Message: "Field %s is missing or invalid."},

	// 2xxx: Document and Blob Errors
	ErrDocumentNotFound:  {Code: ErrDocumentNotFound, Message: "Document not found."},
	ErrCollectionInvalid: {Code: ErrCollectionInvalid, Message: "Unknown collection."},
	ErrQueryInvalid:      {Code: ErrQueryInvalid, Message: "Invalid query."},
	ErrDocumentForbidden: {Code: ErrDocumentForbidden, Message: "You do not have access to this document.", Status: http.StatusForbidden},
	ErrBlobPathForbidden: {Code: ErrBlobPathForbidden, Message: "You do not have access to this file.", Status: http.StatusForbidden},
	ErrFileSizeTooLarge:  {Code: ErrFileSizeTooLarge, Message: "File is too large."},
	ErrFileTypeInvalid:   {Code: ErrFileTypeInvalid, Message: "File type is not supported."},

	// 3xxx: Identity, Session, and Security Errors
	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Message: "Verification required. Please try again."},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Message: "Verification failed. Please try again."},
	ErrPowChallengeInternal: {Code: ErrPowChallengeInternal, Message: "Verification service error. Please try again later."},
	ErrInvalidEmail:         {Code: ErrInvalidEmail, Message: "Invalid email address."},
	ErrInvalidCredentials:   {Code: ErrInvalidCredentials, Message: "Incorrect email or password."},
	ErrEmailInUse:           {Code: ErrEmailInUse, Message: "An account already exists for this email address."},
	ErrWeakPassword:         {Code: ErrWeakPassword, Message: "Password must be at least 6 characters."},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrResetTokenInvalid:    {Code: ErrResetTokenInvalid, Message: "This reset link is invalid or has expired."},
	ErrAlreadyLoggedIn:      {Code: ErrAlreadyLoggedIn, Message: "You are already signed in."},

	// 5xxx: Internal System Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageFailed: {Code: ErrStorageFailed, Message: "File storage failed. Please try again."},
}
