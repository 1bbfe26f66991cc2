/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError template, used to standardize
HTTP responses, client-side decoding and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// Status is left zero when the Kind's default status applies.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Kind: KindValidation, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Kind: KindValidation, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Kind: KindValidation, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Kind: KindValidation, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Kind: KindConflict, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrValidation:           {Code: ErrValidation, Kind: KindValidation, Message: "Please correct the highlighted fields.", Status: http.StatusUnprocessableEntity},

	// 2xxx: Hotel, Room and Message Errors
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Kind: KindNotFound, Message: "Chat room not found."},
	ErrHotelNotFound:         {Code: ErrHotelNotFound, Kind: KindNotFound, Message: "Hotel not found."},
	ErrHotelUnstaffed:        {Code: ErrHotelUnstaffed, Kind: KindNotFound, Message: "No hotel operator is available for this hotel yet."},
	ErrHotelExists:           {Code: ErrHotelExists, Kind: KindConflict, Message: "This hotel is already registered."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Kind: KindValidation, Message: "Message is too long."},
	ErrEmptyContent:          {Code: ErrEmptyContent, Kind: KindValidation, Message: "Message cannot be empty."},
	ErrNotAParticipant:       {Code: ErrNotAParticipant, Kind: KindAuthorization, Message: "You are not a participant of this chat."},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Kind: KindAuthentication, Message: "Please sign in to continue."},
	ErrAlreadyLoggedIn:    {Code: ErrAlreadyLoggedIn, Kind: KindConflict, Message: "You are already signed in."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Kind: KindConflict, Message: "Email or username is already registered."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Kind: KindAuthentication, Message: "Incorrect email or password."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Kind: KindAuthentication, Message: "Account not found."},
	ErrRegistrationFailed: {Code: ErrRegistrationFailed, Kind: KindInternal, Message: "Registration failed. Please try again."},
	ErrForbidden:          {Code: ErrForbidden, Kind: KindAuthorization, Message: "You do not have access to this resource."},
	ErrSessionExpired:     {Code: ErrSessionExpired, Kind: KindAuthentication, Message: "Your session has expired. Please sign in again."},
	ErrAvatarNotSet:       {Code: ErrAvatarNotSet, Kind: KindNotFound, Message: "No avatar has been uploaded."},

	// 4xxx: Transport Errors
	ErrNetwork: {Code: ErrNetwork, Kind: KindNetwork, Message: "Unable to reach the service. Check your connection."},

	// 5xxx: Internal System Errors
	ErrUnknown:              {Code: ErrUnknown, Kind: KindInternal, Message: "Something went wrong. Please try again."},
	ErrFileStorageFailed:    {Code: ErrFileStorageFailed, Kind: KindInternal, Message: "File storage is unavailable. Please try again."},
	ErrStorageNotConfigured: {Code: ErrStorageNotConfigured, Kind: KindInternal, Message: "Avatar storage is not enabled.", Status: http.StatusNotImplemented},
	ErrFileSizeTooLarge:     {Code: ErrFileSizeTooLarge, Kind: KindValidation, Message: "File is too large (max %d MB)."},
	ErrFileTypeInvalid:      {Code: ErrFileTypeInvalid, Kind: KindValidation, Message: "Only JPEG, PNG, WEBP or GIF images are allowed."},
}
