package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("Post"))
	require.ErrorIs(t, err, ErrNoData)
	require.Equal(t, "lookup: Post not found", err.Error())

	err = Forbidden("You can only delete your own posts")
	require.ErrorIs(t, err, ErrDenied)
	require.False(t, errors.Is(err, ErrNoData))
}

func TestBalanceError(t *testing.T) {
	var be *BalanceError
	err := fmt.Errorf("upgrade: %w", &BalanceError{Required: 50, Available: 49})

	require.True(t, errors.As(err, &be))
	require.Equal(t, "Insufficient tokens. Required: 50, Available: 49", be.Error())
}
