package rest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/seventv/chatsync/internal/dispatcher"
	"github.com/seventv/chatsync/internal/svc/identity"
	"github.com/seventv/chatsync/internal/testutil"
)

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status HttpStatusCode
	}{
		{identity.ErrWeakPassword, BadRequest},
		{fmt.Errorf("wrapped: %w", identity.ErrMissingField), BadRequest},
		{identity.ErrEmailTaken, Conflict},
		{identity.ErrInvalidCredentials, Unauthorized},
		{dispatcher.ErrEmptyMessage, BadRequest},
		{dispatcher.ErrInvalidID, BadRequest},
		{&dispatcher.SendError{Stage: dispatcher.StageReceiver, Err: fmt.Errorf("down")}, BadGateway},
		{&dispatcher.SendError{Stage: dispatcher.StageSender, Err: fmt.Errorf("down")}, InternalServerError},
	}

	for _, c := range cases {
		testutil.Assert(t, int(c.status), Error(c.err).ExpectedHTTPStatus(), c.err.Error())
	}

	testutil.Assert(t, true, Error(nil) == nil, "nil passes through")
}

func TestErrorHidesInternalDetail(t *testing.T) {
	t.Parallel()

	err := Error(fmt.Errorf("store: dial tcp 10.0.0.3:6379: connection refused"))

	testutil.Assert(t, int(InternalServerError), err.ExpectedHTTPStatus(), "status")
	testutil.Assert(t, "Internal Server Error: Internal error", err.Message(), "generic detail")
	testutil.Assert(t, false, strings.Contains(err.Message(), "10.0.0.3"), "cause not exposed")
}
