package controllers

import (
	"net/http"

	"github.com/treehouse-chat/treehouse-backend/api/middleware"
	"github.com/treehouse-chat/treehouse-backend/api/responses"
	"github.com/treehouse-chat/treehouse-backend/api/validators"
	"github.com/treehouse-chat/treehouse-backend/internal/accounts"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/logger"
)

// AccountDelete removes the authenticated account after a password check.
// The session is revoked afterwards so the presented token stops working.
func AccountDelete(svc accounts.Service, sessions sessionTokenRotator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body accounts.DeleteAccountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if sessions != nil {
			if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" {
				if revokeErr := sessions.Revoke(r.Context(), sessionID); revokeErr != nil && logg != nil {
					logg.Error(r.Context(), "revoke session after account delete", revokeErr)
				}
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
