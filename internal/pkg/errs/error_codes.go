/*
Package errs provides custom error types and application-level error code constants.

These error codes identify business and system errors both inside the server and on
the wire, where the client adapters map them back onto session-level errors.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrValidationFailed indicates that a required field was missing or malformed.
	// The message template carries the offending field.
	ErrValidationFailed = 1008
)

// 2xxx: Document and Blob Errors
const (
	// ErrDocumentNotFound indicates that the addressed document does not exist.
	ErrDocumentNotFound = 2101

	// ErrCollectionInvalid indicates an unknown collection path.
	ErrCollectionInvalid = 2102

	// ErrQueryInvalid indicates a malformed query (bad field name, limit out of range).
	ErrQueryInvalid = 2103

	// ErrDocumentForbidden indicates an attempt to touch another user's documents.
	ErrDocumentForbidden = 2104

	// ErrBlobPathForbidden indicates a blob path outside the caller's prefixes.
	ErrBlobPathForbidden = 2201

	// ErrFileSizeTooLarge indicates that an uploaded file exceeds the size limit.
	ErrFileSizeTooLarge = 2202

	// ErrFileTypeInvalid indicates that an uploaded file has an unsupported type.
	ErrFileTypeInvalid = 2203
)

// 3xxx: Identity, Session, and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the PoW proof provided by the client is invalid.
	ErrPowChallengeInvalid = 3002

	// ErrPowChallengeInternal indicates an internal error in the PoW challenge flow.
	ErrPowChallengeInternal = 3003

	// ErrInvalidEmail indicates a syntactically invalid email address.
	ErrInvalidEmail = 3101

	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = 3102

	// ErrEmailInUse indicates that an account already exists for the email address.
	ErrEmailInUse = 3103

	// ErrWeakPassword indicates that the password does not meet the length policy.
	ErrWeakPassword = 3104

	// ErrUnauthorized indicates a missing, invalid, expired or revoked token.
	ErrUnauthorized = 3105

	// ErrResetTokenInvalid indicates an unknown or already used password reset token.
	ErrResetTokenInvalid = 3106

	// ErrAlreadyLoggedIn indicates that the caller already carries a valid identity.
	ErrAlreadyLoggedIn = 3107
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageFailed indicates that the blob storage backend failed.
	ErrStorageFailed = 5001
)
