package domain

// ErrorCategory is a stable wire identifier describing why an operation
// failed. Values are part of the HTTP and push protocol surface.
type ErrorCategory string

const (
	CategoryInvalidURL          ErrorCategory = "invalid_url"
	CategoryVideoUnavailable    ErrorCategory = "video_unavailable"
	CategoryFormatNotSupported  ErrorCategory = "format_not_supported"
	CategoryDownloadFailed      ErrorCategory = "download_failed"
	CategoryFileTooLarge        ErrorCategory = "file_too_large"
	CategoryRateLimited         ErrorCategory = "rate_limited"
	CategorySystemError         ErrorCategory = "system_error"
	CategoryJobNotFound         ErrorCategory = "job_not_found"
	CategoryInvalidRequest      ErrorCategory = "invalid_request"
	CategoryNetworkError        ErrorCategory = "network_error"
	CategoryFileNotFound        ErrorCategory = "file_not_found"
	CategoryFileExpired         ErrorCategory = "file_expired"
	CategoryGeoBlocked          ErrorCategory = "geo_blocked"
	CategoryLoginRequired       ErrorCategory = "login_required"
	CategoryPlatformRateLimited ErrorCategory = "platform_rate_limited"
	CategoryDownloadTimeout     ErrorCategory = "download_timeout"
)

// CategoryDetail is the frozen user-facing triple for a category.
// Internal technical details are logged, never put into these fields.
type CategoryDetail struct {
	Title   string
	Message string
	Action  string
}

var categoryDetails = map[ErrorCategory]CategoryDetail{
	CategoryInvalidURL: {
		Title:   "Invalid URL",
		Message: "The provided URL is not valid or not supported.",
		Action:  "Check the URL and try again.",
	},
	CategoryVideoUnavailable: {
		Title:   "Video unavailable",
		Message: "The video is private, deleted, or otherwise unavailable.",
		Action:  "Verify the video is publicly accessible.",
	},
	CategoryFormatNotSupported: {
		Title:   "Format not supported",
		Message: "The requested format is not available for this video.",
		Action:  "Pick a different format and try again.",
	},
	CategoryDownloadFailed: {
		Title:   "Download failed",
		Message: "The download could not be completed.",
		Action:  "Try again later.",
	},
	CategoryFileTooLarge: {
		Title:   "File too large",
		Message: "The requested media exceeds the allowed size.",
		Action:  "Choose a smaller format or a shorter clip.",
	},
	CategoryRateLimited: {
		Title:   "Rate limit exceeded",
		Message: "Too many requests from your address.",
		Action:  "Wait for the limit to reset before retrying.",
	},
	CategorySystemError: {
		Title:   "Internal error",
		Message: "An unexpected error occurred.",
		Action:  "Try again later.",
	},
	CategoryJobNotFound: {
		Title:   "Job not found",
		Message: "No job exists with that id.",
		Action:  "Check the job id.",
	},
	CategoryInvalidRequest: {
		Title:   "Invalid request",
		Message: "The request body is missing required fields or malformed.",
		Action:  "Fix the request and try again.",
	},
	CategoryNetworkError: {
		Title:   "Network error",
		Message: "A network problem interrupted the download.",
		Action:  "Try again later.",
	},
	CategoryFileNotFound: {
		Title:   "File not found",
		Message: "No file exists for that download token.",
		Action:  "Check the download link.",
	},
	CategoryFileExpired: {
		Title:   "Download link expired",
		Message: "The download link has expired and the file was removed.",
		Action:  "Submit the download again.",
	},
	CategoryGeoBlocked: {
		Title:   "Geo-blocked",
		Message: "The video is not available from the server's region.",
		Action:  "This content cannot be fetched from here.",
	},
	CategoryLoginRequired: {
		Title:   "Login required",
		Message: "The platform requires a signed-in account for this video.",
		Action:  "This content cannot be fetched anonymously.",
	},
	CategoryPlatformRateLimited: {
		Title:   "Platform rate limit",
		Message: "The source platform is rate limiting downloads.",
		Action:  "Wait a while before retrying.",
	},
	CategoryDownloadTimeout: {
		Title:   "Download timed out",
		Message: "The download did not finish in time.",
		Action:  "Try again later.",
	},
}

// Detail returns the frozen (title, message, action) triple for the
// category, falling back to the system-error triple for unknown values.
func (c ErrorCategory) Detail() CategoryDetail {
	if detail, ok := categoryDetails[c]; ok {
		return detail
	}
	return categoryDetails[CategorySystemError]
}
