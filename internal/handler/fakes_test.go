package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3-invigorate/invigorate/internal/auth"
	"github.com/f3-invigorate/invigorate/internal/handler"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/service"
)

// Fakes for every interface the handlers depend on. Each records what it
// was called with and returns whatever the test loaded into it.

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func strPtr(s string) *string { return &s }

func athlete() *model.User {
	return &model.User{
		ID:        "cn1athlete0000000000",
		SubjectID: "uid-athlete",
		Email:     strPtr("pax@example.com"),
		Role:      model.RoleAthlete,
	}
}

func him() *model.User {
	return &model.User{
		ID:        "cn1him00000000000000",
		SubjectID: "uid-him",
		Email:     strPtr("q@example.com"),
		FirstName: strPtr("Sam"),
		LastName:  strPtr("Smith"),
		Handle:    strPtr("Sparky"),
		Role:      model.RoleHIM,
	}
}

type fakeVerifier struct {
	claims   *auth.Claims
	err      error
	gotToken string
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	f.gotToken = token
	return f.claims, f.err
}

type fakeIdentities struct {
	user      *model.User
	err       error
	gotClaims *auth.Claims
	gotOpts   service.ResolveOptions
}

func (f *fakeIdentities) Resolve(ctx context.Context, claims *auth.Claims, opts service.ResolveOptions) (*model.User, error) {
	f.gotClaims = claims
	f.gotOpts = opts
	return f.user, f.err
}

type fakeAttendance struct {
	err          error
	gotSelf      service.SelfAttendanceInput
	gotBackblast service.BackblastInput
	gotQ         *model.User
	result       *service.BackblastResult
}

func (f *fakeAttendance) LogSelf(ctx context.Context, user *model.User, in service.SelfAttendanceInput) error {
	f.gotSelf = in
	return f.err
}

func (f *fakeAttendance) CreateBackblast(ctx context.Context, q *model.User, in service.BackblastInput) (*service.BackblastResult, error) {
	f.gotQ = q
	f.gotBackblast = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEfforts struct {
	err error
	got service.EffortInput
}

func (f *fakeEfforts) LogManual(ctx context.Context, user *model.User, in service.EffortInput) (*model.EffortRecord, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.EffortRecord{UserID: user.ID}, nil
}

type fakeReflections struct {
	err error
	got service.ReflectionInput
}

func (f *fakeReflections) Save(ctx context.Context, user *model.User, in service.ReflectionInput) (*model.WeeklyReflection, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.WeeklyReflection{UserID: user.ID}, nil
}

type fakeSelfReports struct {
	err error
	got service.SelfReportInput
}

func (f *fakeSelfReports) Create(ctx context.Context, user *model.User, in service.SelfReportInput) (*model.SelfReportEntry, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.SelfReportEntry{UserID: user.ID, Category: model.Category(in.Category)}, nil
}

type fakeDashboard struct {
	summary *service.Summary
	err     error
}

func (f *fakeDashboard) Summary(ctx context.Context, user *model.User) (*service.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.summary
	s.User = user
	return &s, nil
}

type fakePageAuth struct {
	user *model.User
	err  error
}

func (f *fakePageAuth) CurrentUser(r *http.Request) (*model.User, error) {
	return f.user, f.err
}

func newResponder(exposeDetails bool) *handler.Responder {
	return handler.NewResponder(quietLogger, exposeDetails)
}

// asUser attaches user the way RequireUser would.
func asUser(r *http.Request, user *model.User) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), user))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body), "body: %s", rr.Body.String())
	return body
}
