package captcha

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermanentWrapping(t *testing.T) {
	base := errors.New("boom")

	require.True(t, IsPermanent(Permanent(base)))
	require.False(t, IsPermanent(base))
	require.False(t, IsPermanent(nil))

	// The marker survives further wrapping and unwraps to the cause.
	wrapped := fmt.Errorf("attempt 2: %w", Permanent(base))
	require.True(t, IsPermanent(wrapped))
	require.ErrorIs(t, wrapped, base)
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		out  Outcome
		want bool
	}{
		{"timed out", TimedOut(), true},
		{"transient failure", Failed("flaky", errors.New("reset")), true},
		{"failure without cause", Failed("flaky", nil), true},
		{"permanent failure", Failed("broken", Permanent(errors.New("bad"))), false},
		{"unsupported", Failed("unsupported", ErrUnsupported), false},
		{"missing credential", Failed("missing_credential", Permanent(ErrMissingCredential)), false},
		{"solved", Solved(), false},
		{"not found", NotFound(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, retryable(tc.out))
		})
	}
}

func TestOutcomeConstructors(t *testing.T) {
	require.Equal(t, "solved", Solved().Status.String())
	require.Equal(t, "not_found", NotFound().Status.String())
	require.Equal(t, "timed_out", TimedOut().Status.String())
	require.Equal(t, "timeout", TimedOut().Reason)

	out := Failed("boom", errors.New("cause"))
	require.Equal(t, "failed", out.Status.String())
	require.Equal(t, "boom", out.Reason)
	require.Error(t, out.Err)
}
