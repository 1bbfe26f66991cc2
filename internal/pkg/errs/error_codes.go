/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both inside the service and in the client, which decodes them back from API responses.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrValidation indicates that one or more fields were rejected. The Fields map carries the details.
	ErrValidation = 1008
)

// 2xxx: Hotel, Room and Message Errors
const (
	// ErrRoomNotFound indicates that the chat room does not exist or has been closed.
	ErrRoomNotFound = 2103

	// ErrHotelNotFound indicates that the hotel place id does not resolve to a live hotel.
	ErrHotelNotFound = 2105

	// ErrHotelUnstaffed indicates that no operator is available to receive an inquiry for the hotel.
	ErrHotelUnstaffed = 2106

	// ErrHotelExists indicates that a hotel with the same place id is already registered.
	ErrHotelExists = 2107

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrEmptyContent indicates that the message content is blank after trimming.
	ErrEmptyContent = 2202

	// ErrNotAParticipant indicates that the caller is not a participant of the chat room.
	ErrNotAParticipant = 2301
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing, expired or rejected session token.
	ErrUnauthorized = 3000

	// ErrAlreadyLoggedIn indicates that an authenticated caller tried to log in or register again.
	ErrAlreadyLoggedIn = 3005

	// ErrUserAlreadyExists indicates that the email or username is already registered.
	ErrUserAlreadyExists = 3008

	// ErrInvalidCredentials indicates that the email/password pair was rejected.
	ErrInvalidCredentials = 3009

	// ErrUserNotFound indicates that the account referenced by the token no longer exists.
	ErrUserNotFound = 3010

	// ErrRegistrationFailed indicates a registration failure without field-level detail.
	ErrRegistrationFailed = 3011

	// ErrForbidden indicates that the caller's role does not permit the action.
	ErrForbidden = 3013

	// ErrSessionExpired is raised locally by the client after the service rejected the session token.
	ErrSessionExpired = 3014

	// ErrAvatarNotSet indicates that the account has no avatar object.
	ErrAvatarNotSet = 3015
)

// 4xxx: Transport Errors
const (
	// ErrNetwork indicates that the service could not be reached or answered with an unreadable body.
	ErrNetwork = 4001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the object store refused a presign request.
	ErrFileStorageFailed = 5001

	// ErrStorageNotConfigured indicates that avatar storage is disabled in this deployment.
	ErrStorageNotConfigured = 5002

	// ErrFileSizeTooLarge indicates that the declared avatar size exceeds the limit.
	ErrFileSizeTooLarge = 5003

	// ErrFileTypeInvalid indicates that the declared avatar type is not an allowed image type.
	ErrFileTypeInvalid = 5004
)
