package handler

import (
	"context"
	"net/http"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/service"
)

// DashboardReader is shared by the JSON endpoint and the HTML dashboard.
type DashboardReader interface {
	Summary(ctx context.Context, user *model.User) (*service.Summary, error)
}

type DashboardHandler struct {
	dashboard DashboardReader
	resp      *Responder
}

func NewDashboardHandler(dashboard DashboardReader, resp *Responder) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, resp: resp}
}

type SummaryResponse struct {
	Success bool             `json:"success"`
	Data    *service.Summary `json:"data"`
}

// HandleSummary returns the caller's dashboard numbers.
//
// HTTP: GET /api/dashboard (behind RequireUser)
func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.resp.Error(w, r, apperror.Unauthorized("Unauthorized"))
		return
	}

	summary, err := h.dashboard.Summary(r.Context(), user)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Success: true, Data: summary})
}
