package engine

import (
	"errors"
	"fmt"
)

// SubscriptionErrorCode categorizes rejected subscription requests.
type SubscriptionErrorCode string

const (
	// ErrCodeTooManySubscriptions indicates the registry is at capacity.
	ErrCodeTooManySubscriptions SubscriptionErrorCode = "TOO_MANY_SUBSCRIPTIONS"

	// ErrCodeDuplicateSubscription indicates the subscription id is already open.
	ErrCodeDuplicateSubscription SubscriptionErrorCode = "DUPLICATE_SUBSCRIPTION_ID"
)

const (
	noticeTooManySubscriptions  = "too many subscriptions"
	noticeDuplicateSubscription = "subscription id already exists"
)

// SubscriptionError is returned by Registry.Open when a subscription cannot
// be registered. The registry is unchanged when it is returned.
type SubscriptionError struct {
	Code           SubscriptionErrorCode
	SubscriptionID string
}

// Error implements the error interface.
func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("%s: %s (subscription=%s)", e.Code, e.Notice(), e.SubscriptionID)
}

// Notice is the client-facing message for the error.
func (e *SubscriptionError) Notice() string {
	switch e.Code {
	case ErrCodeTooManySubscriptions:
		return noticeTooManySubscriptions
	case ErrCodeDuplicateSubscription:
		return noticeDuplicateSubscription
	default:
		return "subscription rejected"
	}
}

// IsTooManySubscriptions reports whether err is a capacity rejection.
// Uses errors.As to handle wrapped errors.
func IsTooManySubscriptions(err error) bool {
	var se *SubscriptionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeTooManySubscriptions
	}
	return false
}

// IsDuplicateSubscription reports whether err is a duplicate-id rejection.
// Uses errors.As to handle wrapped errors.
func IsDuplicateSubscription(err error) bool {
	var se *SubscriptionError
	if errors.As(err, &se) {
		return se.Code == ErrCodeDuplicateSubscription
	}
	return false
}

// ErrUnrestrictedFilter rejects a REQ filter lacking both authors and #p
// when filter restriction is enabled.
var ErrUnrestrictedFilter = errors.New("filter must include authors or #p")
