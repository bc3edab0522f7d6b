package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&services.NotFoundError{Resource: "session", Key: "x"}, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", &services.TerminalStateError{}), http.StatusConflict},
		{&services.InvalidTransitionError{From: "SCHEDULED", To: "COMPLETED"}, http.StatusConflict},
		{&services.ValidationError{Field: "code"}, http.StatusBadRequest},
		{&services.ForbiddenError{Actor: "a", Action: "b"}, http.StatusForbidden},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
