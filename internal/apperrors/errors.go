package apperrors

// ErrorCode identifies an error kind across the REST surface.
type ErrorCode string

const (
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeInputError        ErrorCode = "INPUT_ERROR"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeDeviceError       ErrorCode = "DEVICE_ERROR"
	ErrorCodeMediaServerError  ErrorCode = "MEDIA_SERVER_ERROR"
	ErrorCodeMissingDependency ErrorCode = "MISSING_DEPENDENCY"
)

// ErrorBody is the serialized error payload.
type ErrorBody struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError is the base error type for HTTP responses.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (err *AppError) Error() string {
	return err.Message
}

func (err *AppError) ErrorBody() ErrorBody {
	return ErrorBody{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// NewInputError reports a malformed or unsupported client input (bad seek
// target, unknown source name, unsupported queue action).
func NewInputError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeInputError, message, 400, details)
}

func NewNotFoundError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeNotFound, message, 404, details)
}

// NewNotFoundResource builds a NOT_FOUND error for a missing entity.
func NewNotFoundResource(resource, id string) *AppError {
	message := resource + " not found"
	details := map[string]any{
		"resource": resource,
	}
	if id != "" {
		message = resource + " not found: " + id
		details["id"] = id
	}
	return NewAppError(ErrorCodeNotFound, message, 404, details)
}

// NewDeviceError reports a command the device rejected or could not receive.
// soapCode carries the UPnP error code when the device returned one.
func NewDeviceError(message string, soapCode *int) *AppError {
	var details map[string]any
	if soapCode != nil {
		details = map[string]any{"soap_error_code": *soapCode}
	}
	return NewAppError(ErrorCodeDeviceError, message, 503, details)
}

// NewMediaServerError reports a transport-level failure talking to the
// content directory.
func NewMediaServerError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeMediaServerError, message, 503, details)
}

// NewMissingDependencyError reports an external tool absent from PATH.
func NewMissingDependencyError(dependency string) *AppError {
	return NewAppError(ErrorCodeMissingDependency, "missing external dependency: "+dependency, 404, map[string]any{
		"dependency": dependency,
	})
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, 500, nil)
}

// EnsureAppError converts an arbitrary error into an AppError.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalError("Internal server error")
}
