package feedback

import (
	"strings"

	apperrors "github.com/dominica-news/feedback/pkg/errors"
)

// Category identifies the user-facing class of a failure.
type Category string

const (
	CategoryConnection     Category = "connection"
	CategorySessionExpired Category = "session_expired"
	CategoryAccessDenied   Category = "access_denied"
	CategoryInvalidInput   Category = "invalid_input"
	CategoryServerError    Category = "server_error"
	CategoryRateLimited    Category = "rate_limited"
	CategoryUploadError    Category = "upload_error"
	CategoryDatabaseError  Category = "database_error"
	CategoryUnexpected     Category = "unexpected"
)

// Severity is a coarse urgency tag. It controls notification duration
// and urgency only, never retry behavior.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ActionKind names the affordance a suggested action offers.
type ActionKind string

const (
	ActionReload   ActionKind = "reload"
	ActionSignIn   ActionKind = "sign_in"
	ActionRetry    ActionKind = "retry"
	ActionNavigate ActionKind = "navigate"
)

// SuggestedAction is the remediation offered alongside a descriptor.
// Effect is optional; presenters wire the real callback. Target carries
// a destination for navigate actions.
type SuggestedAction struct {
	Label  string
	Kind   ActionKind
	Target string
	Effect func()
}

// Descriptor is the structured, user-facing representation of a
// classified error. Immutable once constructed.
type Descriptor struct {
	Category    Category
	Title       string
	Message     string
	Severity    Severity
	Recoverable bool
	Action      *SuggestedAction
}

// Classify maps an arbitrary error to a Descriptor. It is pure and
// total: it never panics and unmatched errors fall through to the
// generic unexpected descriptor. The offline flag is passed explicitly
// rather than read from ambient state; when set it forces the
// connection category regardless of the error's content.
//
// Rule order is part of the contract. An error mentioning both
// "database" and "network" classifies as a connection problem because
// the connection rule is evaluated first.
func Classify(err error, offline bool) Descriptor {
	norm := apperrors.Normalize(err)
	msg := strings.ToLower(norm.Message)

	switch {
	case offline,
		norm.Kind == apperrors.KindNetwork,
		strings.Contains(msg, "fetch"),
		strings.Contains(msg, "network"):
		return Descriptor{
			Category:    CategoryConnection,
			Title:       "Connection Problem",
			Message:     "Unable to reach the Dominica News servers. Check your internet connection and try again.",
			Severity:    SeverityMedium,
			Recoverable: true,
			Action:      &SuggestedAction{Label: "Reload Page", Kind: ActionReload},
		}

	case norm.StatusCode == 401,
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "401"):
		return Descriptor{
			Category:    CategorySessionExpired,
			Title:       "Session Expired",
			Message:     "Your session has expired. Please sign in again to continue.",
			Severity:    SeverityMedium,
			Recoverable: true,
			Action:      &SuggestedAction{Label: "Sign In", Kind: ActionSignIn},
		}

	case norm.StatusCode == 403,
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "403"):
		return Descriptor{
			Category:    CategoryAccessDenied,
			Title:       "Access Denied",
			Message:     "You do not have permission to perform this action. Contact an administrator if you believe this is a mistake.",
			Severity:    SeverityMedium,
			Recoverable: false,
		}

	case strings.Contains(msg, "validation"),
		strings.Contains(msg, "invalid"):
		return Descriptor{
			Category:    CategoryInvalidInput,
			Title:       "Invalid Input",
			Message:     "Some of the information provided is not valid. Review the highlighted fields and try again.",
			Severity:    SeverityLow,
			Recoverable: true,
		}

	case norm.StatusCode >= 500,
		strings.Contains(msg, "500"),
		strings.Contains(msg, "server"),
		strings.Contains(msg, "internal"):
		return Descriptor{
			Category:    CategoryServerError,
			Title:       "Server Error",
			Message:     "The server ran into a problem handling the request. The team has been notified.",
			Severity:    SeverityHigh,
			Recoverable: true,
			Action:      &SuggestedAction{Label: "Reload Page", Kind: ActionReload},
		}

	case norm.StatusCode == 429,
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"):
		return Descriptor{
			Category:    CategoryRateLimited,
			Title:       "Slow Down",
			Message:     "Too many requests in a short time. Wait a moment before trying again.",
			Severity:    SeverityLow,
			Recoverable: true,
		}

	case strings.Contains(msg, "file") &&
		(strings.Contains(msg, "size") || strings.Contains(msg, "type")):
		return Descriptor{
			Category:    CategoryUploadError,
			Title:       "Upload Problem",
			Message:     "The file could not be uploaded. Check that it is an accepted type and within the size limit.",
			Severity:    SeverityLow,
			Recoverable: true,
		}

	case strings.Contains(msg, "database"),
		strings.Contains(msg, "connection"):
		return Descriptor{
			Category:    CategoryDatabaseError,
			Title:       "Service Unavailable",
			Message:     "A backend service is not responding. Reload the page; if the problem persists, contact support.",
			Severity:    SeverityCritical,
			Recoverable: true,
			Action:      &SuggestedAction{Label: "Reload Page", Kind: ActionReload},
		}

	default:
		return Descriptor{
			Category:    CategoryUnexpected,
			Title:       "Something Went Wrong",
			Message:     "An unexpected error occurred. Reload the page and try again.",
			Severity:    SeverityMedium,
			Recoverable: true,
			Action:      &SuggestedAction{Label: "Reload Page", Kind: ActionReload},
		}
	}
}
