package controllers

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/treehouse-chat/treehouse-backend/api/responses"
	"github.com/treehouse-chat/treehouse-backend/api/validators"
	"github.com/treehouse-chat/treehouse-backend/internal/channels"
	"github.com/treehouse-chat/treehouse-backend/internal/messages"
	"github.com/treehouse-chat/treehouse-backend/internal/realtime"
	pkgerrors "github.com/treehouse-chat/treehouse-backend/pkg/errors"
	"github.com/treehouse-chat/treehouse-backend/pkg/logger"
)

// MessageSend posts a message to a channel the requester belongs to.
func MessageSend(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "message service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		channelID, err := uuidParam(r, "channelId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body messages.SendMessageRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message, err := svc.Send(r.Context(), userID, channelID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, message)
	}
}

// MessageList pages through channel history newest first.
func MessageList(svc messages.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "message service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		channelID, err := uuidParam(r, "channelId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), userID, channelID, messages.ListMessagesRequest{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// MessageSubscribe upgrades to a websocket and streams channel events until
// the client disconnects. Membership is checked before the upgrade so the
// rejection is still a normal JSON error.
func MessageSubscribe(access channels.Service, hub *realtime.Hub, pump *realtime.Pump, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if access == nil || hub == nil || pump == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		channelID, err := uuidParam(r, "channelId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := access.RequireMember(r.Context(), userID, channelID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := hub.Subscribe(r.Context(), channelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe channel"))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			sub.Close()
			if logg != nil {
				logg.Error(r.Context(), "websocket upgrade failed", err)
			}
			return
		}

		pump.Run(r.Context(), conn, sub)
	}
}
