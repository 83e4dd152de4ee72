package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/information-sharing-networks/cmp-trust/internal/api"
	"github.com/information-sharing-networks/cmp-trust/internal/cmp"
	"github.com/information-sharing-networks/cmp-trust/internal/logger"
	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

// handleValidate godoc
//
//	@Summary		Validate the protection of a CMP message
//	@Description	Checks the MAC or signature protection of a DER encoded PKIMessage under the named
//	@Description	trust profile. Messages of one transaction share the sender certificate validated
//	@Description	by earlier messages; a pkiconf or error body ends the transaction.
//	@Tags			CMP
//	@Accept			application/pkixcmp
//	@Produce		json
//	@Param			profile	path		string					true	"trust profile name"
//	@Success		200		{object}	api.ValidationResponse	"message accepted"
//	@Failure		400		{object}	api.ErrorResponse		"malformed PKIMessage"
//	@Failure		404		{object}	api.ErrorResponse		"unknown profile"
//	@Failure		413		{object}	api.ErrorResponse		"message too large"
//	@Failure		422		{object}	api.ErrorResponse		"message rejected"
//	@Router			/v1/profiles/{profile}/validate [post]
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	reqLogger := logger.ContextRequestLogger(r.Context())

	profileName := chi.URLParam(r, "profile")
	profile, ok := s.profiles[profileName]
	if !ok {
		api.RespondWithErrorResponse(w, r, api.NewUnknownProfileError(fmt.Sprintf("trust profile %q is not configured", profileName)))
		return
	}
	logger.ContextWithLogAttrs(r.Context(), slog.String("profile", profileName))

	der, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			api.RespondWithErrorResponse(w, r, api.NewRequestTooLargeError(
				fmt.Sprintf("PKIMessage exceeds maximum allowed size (%d bytes)", maxBytesErr.Limit),
			))
			return
		}
		api.RespondWithErrorResponse(w, r, api.WrapMalformedRequestError(err, "failed to read request body"))
		return
	}
	if len(der) == 0 {
		api.RespondWithErrorResponse(w, r, api.NewMalformedRequestError("request body is empty"))
		return
	}

	msg, err := cmp.Decode(der)
	if err != nil {
		api.RespondWithErrorResponse(w, r, err)
		return
	}

	transactionID := msg.Header.TransactionIDString()
	bodyType := msg.BodyType()
	logger.ContextWithLogAttrs(r.Context(),
		slog.String("transaction_id", transactionID),
		slog.String("body_type", bodyType.String()),
	)

	tx := s.transactions.acquire(profile, transactionID, reqLogger)
	start := time.Now()
	result, err := validation.ValidateMessage(tx.ctx, msg)
	s.metrics.observe(start, result, err)

	// only an accepted pkiconf or error ends the transaction
	closed := err == nil && (bodyType == cmp.BodyPKIConf || bodyType == cmp.BodyError)
	if closed {
		s.transactions.close(profile.Name, transactionID)
	}
	s.transactions.release(tx)
	s.metrics.open.Update(int64(s.transactions.len()))

	if err != nil {
		api.RespondWithErrorResponse(w, r, err)
		return
	}

	logger.ContextWithLogAttrs(r.Context(),
		slog.String("protection", result.Method.String()),
		slog.String("certificate_source", string(result.Source)),
	)
	api.RespondWithJSONPayload(w, http.StatusOK, api.NewValidationResponse(profile.Name, msg, result, closed))
}
