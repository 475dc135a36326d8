package handler

import (
	"context"
	"net/http"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/service"
)

type AttendanceRecorder interface {
	LogSelf(ctx context.Context, user *model.User, in service.SelfAttendanceInput) error
	CreateBackblast(ctx context.Context, q *model.User, in service.BackblastInput) (*service.BackblastResult, error)
}

type EffortRecorder interface {
	LogManual(ctx context.Context, user *model.User, in service.EffortInput) (*model.EffortRecord, error)
}

type ReflectionRecorder interface {
	Save(ctx context.Context, user *model.User, in service.ReflectionInput) (*model.WeeklyReflection, error)
}

type SelfReportRecorder interface {
	Create(ctx context.Context, user *model.User, in service.SelfReportInput) (*model.SelfReportEntry, error)
}

// RecordHandler serves the record ingestion endpoints. Every route sits
// behind Authenticator.RequireUser, so the user is always in the context.
//
// COMMON SHAPE:
//  1. take the user from the context (401 if somehow absent)
//  2. decode the body into the service's input struct
//  3. call the service, which validates, normalizes and writes one row
//  4. reply {"success": true, "message": ...}
type RecordHandler struct {
	attendance  AttendanceRecorder
	efforts     EffortRecorder
	reflections ReflectionRecorder
	selfReports SelfReportRecorder
	resp        *Responder
}

func NewRecordHandler(
	attendance AttendanceRecorder,
	efforts EffortRecorder,
	reflections ReflectionRecorder,
	selfReports SelfReportRecorder,
	resp *Responder,
) *RecordHandler {
	return &RecordHandler{
		attendance:  attendance,
		efforts:     efforts,
		reflections: reflections,
		selfReports: selfReports,
		resp:        resp,
	}
}

// bind does steps 1 and 2. On failure the error response is already written.
func (h *RecordHandler) bind(w http.ResponseWriter, r *http.Request, dst any) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.resp.Error(w, r, apperror.Unauthorized("Unauthorized"))
		return nil, false
	}
	if err := decodeJSON(w, r, dst); err != nil {
		h.resp.Error(w, r, err)
		return nil, false
	}
	return user, true
}

// HandleSelfAttendance logs the caller at an AO.
//
// HTTP: POST /api/attendance/self
// REQUEST BODY: {"ao": "the-yard", "date": "2024-03-04"}
func (h *RecordHandler) HandleSelfAttendance(w http.ResponseWriter, r *http.Request) {
	var in service.SelfAttendanceInput
	user, ok := h.bind(w, r, &in)
	if !ok {
		return
	}
	if err := h.attendance.LogSelf(r.Context(), user, in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Attendance logged successfully"))
}

// HandleBackblast logs attendance for the PAX of a workout. HIM only.
//
// HTTP: POST /api/backblast/create
// REQUEST BODY: {"ao": "the-yard", "date": "2024-03-04", "pax": "a@x.com, b@x.com"}
func (h *RecordHandler) HandleBackblast(w http.ResponseWriter, r *http.Request) {
	var in service.BackblastInput
	user, ok := h.bind(w, r, &in)
	if !ok {
		return
	}
	res, err := h.attendance.CreateBackblast(r.Context(), user, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(res.Message()))
}

// HandleManualEffort logs a workout's calories and duration.
//
// HTTP: POST /api/effort/manual
// REQUEST BODY: {"calories": 450, "durationMinutes": 45, "date": "2024-03-04"}
func (h *RecordHandler) HandleManualEffort(w http.ResponseWriter, r *http.Request) {
	var in service.EffortInput
	user, ok := h.bind(w, r, &in)
	if !ok {
		return
	}
	if _, err := h.efforts.LogManual(r.Context(), user, in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Effort logged successfully"))
}

// HandleReflection appends a weekly reflection.
//
// HTTP: POST /api/reflection/week
// REQUEST BODY: {"mood": "...", "wins": "...", "struggles": "...", "intention": "..."}
func (h *RecordHandler) HandleReflection(w http.ResponseWriter, r *http.Request) {
	var in service.ReflectionInput
	user, ok := h.bind(w, r, &in)
	if !ok {
		return
	}
	if _, err := h.reflections.Save(r.Context(), user, in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Reflection saved successfully"))
}

// HandleSelfReport records a self-report in one of the fixed categories.
//
// HTTP: POST /api/self-report/new
// REQUEST BODY: {"category": "FELLOWSHIP", "note": "..."}
func (h *RecordHandler) HandleSelfReport(w http.ResponseWriter, r *http.Request) {
	var in service.SelfReportInput
	user, ok := h.bind(w, r, &in)
	if !ok {
		return
	}
	if _, err := h.selfReports.Create(r.Context(), user, in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success("Self-report created successfully"))
}
