package handler

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/model"
	"github.com/f3-invigorate/invigorate/internal/service"
	"github.com/f3-invigorate/invigorate/internal/web"
)

// PageAuthenticator is the part of auth.Authenticator the pages need.
type PageAuthenticator interface {
	CurrentUser(r *http.Request) (*model.User, error)
}

// FirebaseWebConfig is handed to the browser SDK. All three values are
// public; they identify the project, they do not grant access to it.
type FirebaseWebConfig struct {
	APIKey     string `json:"apiKey"`
	AuthDomain string `json:"authDomain"`
	ProjectID  string `json:"projectId"`
}

// pageData is the single value every template receives.
type pageData struct {
	Title      string
	User       *model.User
	Firebase   FirebaseWebConfig
	Summary    *service.Summary
	Categories []model.Category
	Today      string
	Message    string
}

// pageNames are the files under web/templates, minus ".html", that render
// inside base.html.
var pageNames = []string{
	"splash", "signup", "dashboard", "attendance", "effort",
	"reflection", "selfreport", "backblast", "error",
}

var categoryLabels = map[model.Category]string{
	model.CategoryFellowship:     "Fellowship",
	model.CategoryService:        "Service",
	model.CategoryMarriageFamily: "Marriage & Family",
	model.CategoryDietQueen:      "Diet Queen",
	model.CategoryMentalHealth:   "Mental Health",
	model.CategorySpiritual:      "Spiritual",
}

// PageHandler serves the server-rendered HTML pages.
//
// TEMPLATE SETS:
// Each page defines {{define "content"}}, so every page gets its own set
// parsed together with base.html. A single shared set would let the last
// parsed "content" win for every page.
//
// SESSIONS:
// Pages never answer 401. A missing or rejected session redirects to
// /signup; an identity provider outage renders a 503 page instead, so a
// signed-in user is not bounced to signup for something they cannot fix.
type PageHandler struct {
	pages     map[string]*template.Template
	auth      PageAuthenticator
	dashboard DashboardReader
	firebase  FirebaseWebConfig
	loc       *time.Location
	now       service.Clock
	logger    *slog.Logger
}

func NewPageHandler(
	authn PageAuthenticator,
	dashboard DashboardReader,
	firebase FirebaseWebConfig,
	loc *time.Location,
	logger *slog.Logger,
) (*PageHandler, error) {
	funcs := template.FuncMap{
		"categoryLabel": func(c model.Category) string {
			if label, ok := categoryLabels[c]; ok {
				return label
			}
			return string(c)
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(web.Templates,
			"templates/base.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{
		pages:     pages,
		auth:      authn,
		dashboard: dashboard,
		firebase:  firebase,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// HandleSplash serves the landing page to everyone.
//
// HTTP: GET /
func (h *PageHandler) HandleSplash(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser(r)
	if err != nil {
		// A stale cookie should not break the landing page.
		h.logger.Debug("splash page treating session as anonymous", slog.String("error", err.Error()))
		user = nil
	}
	h.render(w, http.StatusOK, "splash", h.data("Welcome", user))
}

// HandleSignup serves the sign-in page, or sends a signed-in user on to
// the dashboard.
//
// HTTP: GET /signup
func (h *PageHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if user, err := h.auth.CurrentUser(r); err == nil && user != nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, "signup", h.data("Sign in", nil))
}

// HandleDashboard renders the weekly summary.
//
// HTTP: GET /dashboard
func (h *PageHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	summary, err := h.dashboard.Summary(r.Context(), user)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := h.data("Dashboard", user)
	data.Summary = summary
	h.render(w, http.StatusOK, "dashboard", data)
}

// HandleAttendance is GET /attendance/self.
func (h *PageHandler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	h.form(w, r, "attendance", "Log attendance")
}

// HandleEffort is GET /effort/manual.
func (h *PageHandler) HandleEffort(w http.ResponseWriter, r *http.Request) {
	h.form(w, r, "effort", "Log effort")
}

// HandleReflection is GET /reflection/week.
func (h *PageHandler) HandleReflection(w http.ResponseWriter, r *http.Request) {
	h.form(w, r, "reflection", "Weekly reflection")
}

// HandleSelfReport is GET /self-report/new.
func (h *PageHandler) HandleSelfReport(w http.ResponseWriter, r *http.Request) {
	h.form(w, r, "selfreport", "Self-report")
}

// HandleBackblast is GET /backblast/create. Any signed-in user can open it;
// the template shows a notice instead of the form to non-HIMs.
func (h *PageHandler) HandleBackblast(w http.ResponseWriter, r *http.Request) {
	h.form(w, r, "backblast", "Backblast")
}

func (h *PageHandler) form(w http.ResponseWriter, r *http.Request, page, title string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, page, h.data(title, user))
}

// requireUser returns the signed-in user, or writes a redirect or error
// page and returns false.
func (h *PageHandler) requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := h.auth.CurrentUser(r)
	switch {
	case err == nil && user != nil:
		return user, true
	case err == nil, errors.Is(err, apperror.ErrUnauthorized):
		http.Redirect(w, r, "/signup", http.StatusFound)
	default:
		h.renderError(w, r, err)
	}
	return nil, false
}

func (h *PageHandler) data(title string, user *model.User) pageData {
	return pageData{
		Title:      title,
		User:       user,
		Firebase:   h.firebase,
		Categories: model.Categories(),
		Today:      h.now().In(h.loc).Format("2006-01-02"),
	}
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	data := h.data("Something went wrong", nil)
	data.Message = "Please try again in a moment."
	if status == http.StatusServiceUnavailable {
		data.Title = "Temporarily unavailable"
		data.Message = "We could not confirm your sign-in right now. Please try again in a moment."
	}

	h.logger.Error("page failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	h.render(w, status, "error", data)
}

// render executes into a buffer first, so a template error still produces
// a clean 500 instead of half a page.
func (h *PageHandler) render(w http.ResponseWriter, status int, page string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
