package rest

import (
	goerrors "errors"

	"github.com/seventv/chatsync/internal/directory"
	"github.com/seventv/chatsync/internal/dispatcher"
	"github.com/seventv/chatsync/internal/session"
	"github.com/seventv/chatsync/internal/svc/identity"
	"github.com/seventv/common/errors"
	"go.uber.org/zap"
)

// Error translates a domain error into the API error sent to clients.
func Error(err error) APIError {
	switch {
	case err == nil:
		return nil
	case goerrors.Is(err, identity.ErrMissingField),
		goerrors.Is(err, identity.ErrWeakPassword),
		goerrors.Is(err, dispatcher.ErrEmptyMessage),
		goerrors.Is(err, dispatcher.ErrInvalidParticipants),
		goerrors.Is(err, dispatcher.ErrInvalidID),
		goerrors.Is(err, dispatcher.ErrMissingID):
		return errors.ErrInvalidRequest().SetDetail(err.Error())
	case goerrors.Is(err, identity.ErrEmailTaken):
		return errors.ErrInvalidRequest().WithHTTPStatus(int(Conflict)).SetDetail("Email is already registered")
	case goerrors.Is(err, identity.ErrInvalidCredentials):
		return errors.ErrUnauthorized().SetDetail("Invalid email or password")
	case goerrors.Is(err, session.ErrUnauthorized):
		return errors.ErrUnauthorized().SetDetail("Not signed in")
	case goerrors.Is(err, directory.ErrUnknownUser):
		return errors.ErrUnknownUser()
	case goerrors.Is(err, dispatcher.ErrPartialDelivery):
		return errors.ErrInternalServerError().WithHTTPStatus(int(BadGateway)).SetDetail("partial delivery")
	}

	zap.S().Named("rest").Errorw("unhandled error",
		"error", err,
	)

	return errors.ErrInternalServerError().SetDetail("Internal error")
}
