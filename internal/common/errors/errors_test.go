// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"send failure retries", NewEmailSendFailedError("buyer@example.com", errors.New("throttled")), true},
		{"timeout retries", NewEmailSendTimeoutError("buyer@example.com", 15*time.Second), true},
		{"invalid recipient does not retry", NewRecipientInvalidError("mailbox does not exist"), false},
		{"draft transition does not retry", NewDraftTransitionError("draft-1", "rejected", "approved"), false},
		{"wrapped standard error keeps retryability", fmt.Errorf("dispatch: %w", NewRecipientInvalidError("x")), false},
		{"plain error defaults to retryable", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestStandardError_Error(t *testing.T) {
	err := NewEmailSendFailedError("buyer@example.com", errors.New("boom"))
	assert.Equal(t, "StandardError[EMAIL_SEND_FAILED]: Email provider send failed", err.Error())
}
