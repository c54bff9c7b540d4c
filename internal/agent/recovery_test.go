package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Decide(t *testing.T) {
	p := NewPolicy(1, 50*time.Millisecond)

	cases := []struct {
		name        string
		kind        ErrorKind
		recoverable bool
		retryCount  int
		want        Decision
	}{
		{
			name: "transient device failure retries with backoff",
			kind: ErrKindDeviceCommandFailed, recoverable: true, retryCount: 0,
			want: Decision{Op: OpRetry, Backoff: 50 * time.Millisecond},
		},
		{
			name: "provider failure retries",
			kind: ErrKindProviderUnavailable, recoverable: true, retryCount: 1,
			want: Decision{Op: OpRetry, Backoff: 50 * time.Millisecond},
		},
		{
			name: "popup gets dismissed",
			kind: ErrKindPopupBlocking, recoverable: true, retryCount: 0,
			want: Decision{Op: OpRecover, Recovery: RecoverDismissPopup},
		},
		{
			name: "first missed element gets an offset tap",
			kind: ErrKindElementNotFound, recoverable: true, retryCount: 0,
			want: Decision{Op: OpRecover, Recovery: RecoverOffsetTap},
		},
		{
			name: "second missed element re-observes",
			kind: ErrKindElementNotFound, recoverable: true, retryCount: 1,
			want: Decision{Op: OpRecover, Recovery: RecoverReObserve},
		},
		{
			name: "missed element beyond budget aborts",
			kind: ErrKindElementNotFound, recoverable: true, retryCount: 2,
			want: Decision{Op: OpAbort},
		},
		{
			name: "missing auth field re-observes",
			kind: ErrKindAuthFieldNotFound, recoverable: true, retryCount: 0,
			want: Decision{Op: OpRecover, Recovery: RecoverReObserve},
		},
		{
			name: "iteration limit always aborts",
			kind: ErrKindIterationLimit, recoverable: true, retryCount: 0,
			want: Decision{Op: OpAbort},
		},
		{
			name: "cancellation always aborts",
			kind: ErrKindCancelled, recoverable: true, retryCount: 0,
			want: Decision{Op: OpAbort},
		},
		{
			name: "non-recoverable aborts regardless of kind",
			kind: ErrKindElementNotFound, recoverable: false, retryCount: 0,
			want: Decision{Op: OpAbort},
		},
		{
			name: "exhausted budget aborts transient errors too",
			kind: ErrKindDeviceCommandFailed, recoverable: true, retryCount: 2,
			want: Decision{Op: OpAbort},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Decide(tc.kind, tc.recoverable, tc.retryCount)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPolicy_DeterministicForSameInputs(t *testing.T) {
	p := NewPolicy(1, time.Second)
	first := p.Decide(ErrKindElementNotFound, true, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Decide(ErrKindElementNotFound, true, 1))
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrKindPopupBlocking, KindOf(NewError(ErrKindPopupBlocking, "overlay", true)))
	assert.Equal(t, ErrKindProviderUnavailable, KindOf(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "opaque failure" }
