package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		name    string
		input   any
		wantErr string
	}{
		{
			name:  "valid registration",
			input: RegisterRequest{Username: "alex", Email: "alex@example.com", Password: "secret123"},
		},
		{
			name:    "blank username",
			input:   RegisterRequest{Username: "   ", Email: "alex@example.com", Password: "secret123"},
			wantErr: "username is required",
		},
		{
			name:    "bad email",
			input:   RegisterRequest{Username: "alex", Email: "alex", Password: "secret123"},
			wantErr: "email must be a valid email address",
		},
		{
			name:    "short password",
			input:   RegisterRequest{Username: "alex", Email: "alex@example.com", Password: "123"},
			wantErr: "password must be at least 6 characters",
		},
		{
			name:    "unknown tier",
			input:   RegisterRequest{Username: "alex", Email: "alex@example.com", Password: "secret123", SubscriptionTier: "gold"},
			wantErr: "subscriptionTier must be one of: free premium pro",
		},
		{
			name:    "missing job title",
			input:   StartInterviewRequest{JobDescription: "Go"},
			wantErr: "jobTitle is required",
		},
		{
			name:    "blank answer",
			input:   SubmitAnswerRequest{UserAnswer: " \n", QuestionID: 1},
			wantErr: "userAnswer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequestValidatorJoinsMessages(t *testing.T) {
	err := NewRequestValidator().Validate(LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, "email is required; password is required", err.Error())
}
