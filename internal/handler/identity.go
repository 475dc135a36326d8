// Package handler contains the HTTP handlers.
//
// HANDLER RESPONSIBILITIES:
//  1. Decode the request (JSON body, bearer header, session user)
//  2. Call one service method
//  3. Write the JSON or HTML response
//
// Handlers hold no business rules. Each depends on a small interface for
// the service it calls, so tests can hand in a fake.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/service"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, claims *auth.Claims, opts service.ResolveOptions) (*model.User, error)
}

// IdentityHandler serves the two signup endpoints. They are the only routes
// that take the ID token as a bearer header instead of the session cookie.
type IdentityHandler struct {
	verifier   auth.CredentialVerifier
	identities IdentityResolver
	resp       *Responder
	logger     *slog.Logger
}

func NewIdentityHandler(verifier auth.CredentialVerifier, identities IdentityResolver, resp *Responder, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{
		verifier:   verifier,
		identities: identities,
		resp:       resp,
		logger:     logger,
	}
}

// createRequest is the optional body. Email is a fallback for providers
// whose tokens carry none.
type createRequest struct {
	Email string `json:"email"`
}

type athleteData struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subjectId"`
	Email     *string `json:"email"`
}

type AthleteResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	AthleteID string      `json:"athleteId"`
	Data      athleteData `json:"data"`
}

type f3himData struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subjectId"`
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Handle    *string `json:"f3Handle"`
	PhotoURL  *string `json:"photoURL"`
}

type F3HIMResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	F3HIMID string    `json:"f3himId"`
	Data    f3himData `json:"data"`
}

// HandleCreateAthlete finds or creates the caller as an athlete.
//
// HTTP: POST /api/athlete/create
// HEADERS: Authorization: Bearer <Firebase ID token>
func (h *IdentityHandler) HandleCreateAthlete(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolve(w, r, model.RoleAthlete)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AthleteResponse{
		Success:   true,
		Message:   "Athlete found or created",
		AthleteID: user.ID,
		Data: athleteData{
			ID:        user.ID,
			SubjectID: user.SubjectID,
			Email:     user.Email,
		},
	})
}

// HandleCreateF3HIM finds or creates the caller and promotes them to HIM.
//
// HTTP: POST /api/f3him/create
// HEADERS: Authorization: Bearer <Firebase ID token>
func (h *IdentityHandler) HandleCreateF3HIM(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolve(w, r, model.RoleHIM)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, F3HIMResponse{
		Success: true,
		Message: "F3HIM found or created",
		F3HIMID: user.ID,
		Data: f3himData{
			ID:        user.ID,
			SubjectID: user.SubjectID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Handle:    user.Handle,
			PhotoURL:  user.PhotoURL,
		},
	})
}

func (h *IdentityHandler) resolve(w http.ResponseWriter, r *http.Request, role model.Role) (*model.User, error) {
	token, ok := auth.BearerToken(r)
	if !ok {
		return nil, apperror.Unauthorized("Unauthorized")
	}

	// The body is optional; a malformed one is ignored rather than failing
	// an otherwise valid signup.
	var body createRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.logger.Debug("ignoring unreadable signup body", slog.String("error", err.Error()))
	}

	claims, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		h.logger.Warn("signup token rejected",
			slog.String("path", r.URL.Path),
			slog.String("error", errorCause(err)),
		)
		return nil, err
	}

	return h.identities.Resolve(r.Context(), claims, service.ResolveOptions{
		FallbackEmail: body.Email,
		Role:          role,
	})
}

func errorCause(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return err.Error()
}
