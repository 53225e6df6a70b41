package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionError_Message(t *testing.T) {
	err := &SubscriptionError{Code: ErrCodeTooManySubscriptions, SubscriptionID: "s6"}
	assert.Equal(t, "TOO_MANY_SUBSCRIPTIONS: too many subscriptions (subscription=s6)", err.Error())

	dup := &SubscriptionError{Code: ErrCodeDuplicateSubscription, SubscriptionID: "s1"}
	assert.Equal(t, "subscription id already exists", dup.Notice())
}

func TestSubscriptionError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("req: %w", &SubscriptionError{Code: ErrCodeDuplicateSubscription})

	assert.True(t, IsDuplicateSubscription(wrapped))
	assert.False(t, IsTooManySubscriptions(wrapped))
	assert.False(t, IsDuplicateSubscription(errors.New("other")))
}
