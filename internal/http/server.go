// Package http exposes the console over REST: one session endpoint
// that gates and mounts a dashboard, then per-console state and write
// endpoints backed by that session's live mirrors.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xuri/excelize/v2"

	"github.com/Compunic-startup/compunic-management/internal/config"
	"github.com/Compunic-startup/compunic-management/internal/dashboard"
	"github.com/Compunic-startup/compunic-management/internal/export"
	"github.com/Compunic-startup/compunic-management/internal/gate"
	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/session"
	"github.com/Compunic-startup/compunic-management/internal/view"
)

// consoleAllowed is the admission list per console. The tester console
// also admits admins; every other console is exclusive to its role.
var consoleAllowed = map[model.Role][]model.Role{
	model.RoleAdmin:     {model.RoleAdmin},
	model.RoleDeveloper: {model.RoleDeveloper},
	model.RoleTester:    {model.RoleAdmin, model.RoleTester},
	model.RoleHR:        {model.RoleHR},
}

type Server struct {
	cfg      config.Config
	resolver *session.Resolver
	registry *dashboard.Registry

	metrics      *prometheus.Registry
	gateOutcomes *prometheus.CounterVec
}

func NewServer(cfg config.Config, resolver *session.Resolver, registry *dashboard.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		registry: registry,
		metrics:  prometheus.NewRegistry(),
		gateOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_gate_outcomes_total",
			Help: "Session gate outcomes by terminal state.",
		}, []string{"state"}),
	}
	s.metrics.MustRegister(s.gateOutcomes)
	s.metrics.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "console_mounted_sessions",
		Help: "Sessions currently holding a mounted dashboard.",
	}, func() float64 { return float64(registry.Mounted()) }))
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	r.Post("/api/session", s.handleOpenSession)
	r.With(s.authMiddleware).Delete("/api/session", s.handleCloseSession)

	r.Route("/api/tester", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/state", s.handleTesterState)
		r.Post("/tickets", s.handleRaiseTicket)
		r.Post("/tickets/{ticketId}/reraise", s.handleReRaiseTicket)
		r.Patch("/tickets/{ticketId}", s.handleUpdateTicketStatus)
		r.Get("/tickets/report", s.handleTesterReport)
		r.Post("/expenses", s.handleSubmitExpense)
		r.Post("/leave", s.handleApplyLeave)
	})

	r.Route("/api/developer", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/state", s.handleDeveloperState)
		r.Post("/tickets/{ticketId}/resolve", s.handleResolveTicket)
		r.Get("/tickets/report", s.handleDeveloperReport)
		r.Post("/tasks/{taskId}/done", s.handleMarkTaskDone)
		r.Post("/expenses", s.handleSubmitExpense)
		r.Post("/leave", s.handleApplyLeave)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/state", s.handleAdminState)
		r.Post("/tasks", s.handleAssignTask)
		r.Patch("/tasks/{taskId}", s.handleEditTask)
		r.Post("/tasks/{taskId}/reminder", s.handleOverdueReminder)
		r.Patch("/expenses/{expenseId}", s.handleReviewExpense)
		r.Get("/tickets/report", s.handleAdminReport)
		r.Post("/expenses", s.handleSubmitExpense)
	})

	r.Route("/api/hr", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/state", s.handleHRState)
		r.Put("/date", s.handleSetDate)
		r.Put("/attendance/{userId}", s.handleMarkAttendance)
		r.Patch("/leave/{requestId}", s.handleReviewLeave)
		r.Get("/analysis/{userId}", s.handleMonthlyAnalysis)
		r.Get("/analysis/{userId}/report", s.handleAttendanceReport)
		r.Post("/expenses", s.handleSubmitExpense)
		r.Post("/leave", s.handleApplyLeave)
	})

	return r
}

// Session lifecycle

type openSessionRequest struct {
	Console string `json:"console"`
}

type openSessionResponse struct {
	State  string `json:"state"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// handleOpenSession gates the token and, on admission, mounts the
// console's dashboard. A timed-out resolution is reported as its own
// retryable error; the client must not treat it as a denial.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	console := model.DefaultRole
	if req.Console != "" {
		console = model.ParseRole(req.Console)
	}
	allowed, ok := consoleAllowed[console]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_console")
		return
	}

	g := gate.Run(s.resolver, token, allowed, s.cfg.GateTimeout)
	state := g.Wait(r.Context())
	s.gateOutcomes.WithLabelValues(string(state)).Inc()

	switch state {
	case gate.StateAdmitted:
	case gate.StateUnauthenticated:
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	case gate.StateDenied:
		writeError(w, http.StatusForbidden, "forbidden")
		return
	case gate.StateTimedOut:
		writeError(w, http.StatusServiceUnavailable, "role_resolution_timeout")
		return
	default:
		writeError(w, http.StatusServiceUnavailable, "resolution_incomplete")
		return
	}

	sess, _ := g.Session()
	who := sess.Principal
	// An admin admitted to the tester console mounts the tester view.
	who.Role = console
	// The mount outlives this request; its subscriptions must not be
	// tied to the request context.
	if _, err := s.registry.Open(context.Background(), who); err != nil {
		if errors.Is(err, dashboard.ErrConsoleMounted) {
			writeError(w, http.StatusConflict, "console_conflict")
			return
		}
		writeError(w, http.StatusInternalServerError, "mount_failed")
		return
	}
	writeJSON(w, http.StatusCreated, openSessionResponse{
		State:  string(gate.StateAdmitted),
		UserID: sess.Principal.ID,
		Email:  sess.Principal.Email,
		Role:   string(sess.Principal.Role),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	s.registry.CloseSession(claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := s.resolver.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *session.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*session.Claims)
	return claims
}

// mounted fetches the caller's dashboard, or writes the error response
// and returns false. Dashboards only exist between POST and DELETE of
// the session.
func (s *Server) mounted(w http.ResponseWriter, r *http.Request) (dashboard.Dashboard, bool) {
	claims := claimsFromContext(r.Context())
	d, ok := s.registry.Get(claims.UserID)
	if !ok {
		writeError(w, http.StatusConflict, "session_not_mounted")
		return nil, false
	}
	return d, true
}

func testerDashboard(s *Server, w http.ResponseWriter, r *http.Request) (*dashboard.Tester, bool) {
	d, ok := s.mounted(w, r)
	if !ok {
		return nil, false
	}
	td, ok := d.(*dashboard.Tester)
	if !ok {
		writeError(w, http.StatusForbidden, "wrong_console")
		return nil, false
	}
	return td, true
}

func developerDashboard(s *Server, w http.ResponseWriter, r *http.Request) (*dashboard.Developer, bool) {
	d, ok := s.mounted(w, r)
	if !ok {
		return nil, false
	}
	dd, ok := d.(*dashboard.Developer)
	if !ok {
		writeError(w, http.StatusForbidden, "wrong_console")
		return nil, false
	}
	return dd, true
}

func adminDashboard(s *Server, w http.ResponseWriter, r *http.Request) (*dashboard.Admin, bool) {
	d, ok := s.mounted(w, r)
	if !ok {
		return nil, false
	}
	ad, ok := d.(*dashboard.Admin)
	if !ok {
		writeError(w, http.StatusForbidden, "wrong_console")
		return nil, false
	}
	return ad, true
}

func hrDashboard(s *Server, w http.ResponseWriter, r *http.Request) (*dashboard.HR, bool) {
	d, ok := s.mounted(w, r)
	if !ok {
		return nil, false
	}
	hd, ok := d.(*dashboard.HR)
	if !ok {
		writeError(w, http.StatusForbidden, "wrong_console")
		return nil, false
	}
	return hd, true
}

// Tester console

func ticketFilterFromQuery(r *http.Request) view.TicketFilter {
	q := r.URL.Query()
	return view.TicketFilter{
		Search:    q.Get("search"),
		Status:    model.TicketStatus(q.Get("status")),
		Developer: q.Get("developer"),
		Date:      q.Get("date"),
	}
}

func pageFromQuery(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return page
}

func (s *Server) handleTesterState(w http.ResponseWriter, r *http.Request) {
	d, ok := testerDashboard(s, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.State(ticketFilterFromQuery(r), pageFromQuery(r)))
}

type raiseTicketRequest struct {
	ProjectName       string `json:"projectName"`
	AssignedDeveloper string `json:"assignedDeveloper"`
	Description       string `json:"description"`
}

func (s *Server) handleRaiseTicket(w http.ResponseWriter, r *http.Request) {
	d, ok := testerDashboard(s, w, r)
	if !ok {
		return
	}
	var req raiseTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	ticket, err := d.RaiseTicket(r.Context(), req.ProjectName, req.AssignedDeveloper, req.Description)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) handleReRaiseTicket(w http.ResponseWriter, r *http.Request) {
	d, ok := testerDashboard(s, w, r)
	if !ok {
		return
	}
	ticket, err := d.ReRaise(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	d, ok := testerDashboard(s, w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	err := d.UpdateTicketStatus(r.Context(), chi.URLParam(r, "ticketId"), model.TicketStatus(req.Status))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *Server) handleTesterReport(w http.ResponseWriter, r *http.Request) {
	d, ok := testerDashboard(s, w, r)
	if !ok {
		return
	}
	file, err := export.TicketReport(d.ReportTickets(ticketFilterFromQuery(r)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report_failed")
		return
	}
	writeWorkbook(w, file, "tickets.xlsx")
}

// Developer console

func (s *Server) handleDeveloperState(w http.ResponseWriter, r *http.Request) {
	d, ok := developerDashboard(s, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.State(ticketFilterFromQuery(r), pageFromQuery(r)))
}

type resolveTicketRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleResolveTicket(w http.ResponseWriter, r *http.Request) {
	d, ok := developerDashboard(s, w, r)
	if !ok {
		return
	}
	var req resolveTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := d.ResolveTicket(r.Context(), chi.URLParam(r, "ticketId"), req.Notes); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.TicketResolved)})
}

func (s *Server) handleDeveloperReport(w http.ResponseWriter, r *http.Request) {
	d, ok := developerDashboard(s, w, r)
	if !ok {
		return
	}
	file, err := export.TicketReport(d.ReportTickets(ticketFilterFromQuery(r)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report_failed")
		return
	}
	writeWorkbook(w, file, "tickets.xlsx")
}

func (s *Server) handleMarkTaskDone(w http.ResponseWriter, r *http.Request) {
	d, ok := developerDashboard(s, w, r)
	if !ok {
		return
	}
	if err := d.MarkTaskDone(r.Context(), chi.URLParam(r, "taskId")); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.TaskDone)})
}

// Admin console

func (s *Server) handleAdminState(w http.ResponseWriter, r *http.Request) {
	d, ok := adminDashboard(s, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.State())
}

type assignTaskRequest struct {
	AssignedToID string `json:"assignedToId"`
	Description  string `json:"description"`
	Deadline     string `json:"deadline"`
}

func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	d, ok := adminDashboard(s, w, r)
	if !ok {
		return
	}
	var req assignTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := d.AssignTask(r.Context(), req.AssignedToID, req.Description, req.Deadline); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type editTaskRequest struct {
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request) {
	d, ok := adminDashboard(s, w, r)
	if !ok {
		return
	}
	var req editTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := d.EditTask(r.Context(), chi.URLParam(r, "taskId"), req.Description, req.Deadline); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOverdueReminder(w http.ResponseWriter, r *http.Request) {
	d, ok := adminDashboard(s, w, r)
	if !ok {
		return
	}
	if err := d.SendOverdueReminder(chi.URLParam(r, "taskId")); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReviewExpense(w http.ResponseWriter, r *http.Request) {
	d, ok := adminDashboard(s, w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	err := d.ReviewExpense(r.Context(), chi.URLParam(r, "expenseId"), model.ExpenseStatus(req.Status))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *Server) handleAdminReport(w http.ResponseWriter, r *http.Request) {
	d, ok := adminDashboard(s, w, r)
	if !ok {
		return
	}
	reportRange := view.ReportRange(r.URL.Query().Get("range"))
	switch reportRange {
	case "":
		reportRange = view.RangeAll
	case view.RangeAll, view.RangeToday, view.RangeWeek, view.RangeMonth:
	default:
		writeError(w, http.StatusBadRequest, "unknown_range")
		return
	}
	file, err := export.TicketReport(d.ReportTickets(reportRange))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report_failed")
		return
	}
	writeWorkbook(w, file, fmt.Sprintf("tickets-%s.xlsx", reportRange))
}

// HR console

func (s *Server) handleHRState(w http.ResponseWriter, r *http.Request) {
	d, ok := hrDashboard(s, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.State(r.URL.Query().Get("search")))
}

type setDateRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleSetDate(w http.ResponseWriter, r *http.Request) {
	d, ok := hrDashboard(s, w, r)
	if !ok {
		return
	}
	var req setDateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := d.SetDate(r.Context(), req.Date); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"date": req.Date})
}

type markAttendanceRequest struct {
	Status  string `json:"status"`
	InTime  string `json:"inTime"`
	OutTime string `json:"outTime"`
	Reason  string `json:"reason"`
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	d, ok := hrDashboard(s, w, r)
	if !ok {
		return
	}
	var req markAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	err := d.MarkAttendance(r.Context(), chi.URLParam(r, "userId"), model.AttendanceStatus(req.Status), req.InTime, req.OutTime, req.Reason)
	if err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReviewLeave(w http.ResponseWriter, r *http.Request) {
	d, ok := hrDashboard(s, w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	err := d.ReviewLeave(r.Context(), chi.URLParam(r, "requestId"), model.LeaveStatus(req.Status))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func analysisParams(r *http.Request) (int, time.Month, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, err
	}
	monthNum, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, err
	}
	if monthNum < 1 || monthNum > 12 {
		return 0, 0, fmt.Errorf("month out of range")
	}
	return year, time.Month(monthNum), nil
}

type analysisResponse struct {
	Grid    []analysisCell `json:"grid"`
	Summary any            `json:"summary"`
}

type analysisCell struct {
	Day    int                     `json:"day"`
	Record *model.AttendanceRecord `json:"record,omitempty"`
}

func (s *Server) handleMonthlyAnalysis(w http.ResponseWriter, r *http.Request) {
	d, ok := hrDashboard(s, w, r)
	if !ok {
		return
	}
	year, month, err := analysisParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_month")
		return
	}
	grid, summary, err := d.MonthlyAnalysis(r.Context(), chi.URLParam(r, "userId"), year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analysis_failed")
		return
	}
	cells := make([]analysisCell, len(grid))
	for i, c := range grid {
		cells[i] = analysisCell{Day: c.Day, Record: c.Record}
	}
	writeJSON(w, http.StatusOK, analysisResponse{Grid: cells, Summary: summary})
}

func (s *Server) handleAttendanceReport(w http.ResponseWriter, r *http.Request) {
	d, ok := hrDashboard(s, w, r)
	if !ok {
		return
	}
	year, month, err := analysisParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_month")
		return
	}
	userID := chi.URLParam(r, "userId")
	grid, summary, err := d.MonthlyAnalysis(r.Context(), userID, year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analysis_failed")
		return
	}
	email := userID
	for _, c := range grid {
		if c.Record != nil && c.Record.Email != "" {
			email = c.Record.Email
			break
		}
	}
	file, err := export.AttendanceReport(email, year, month, grid, summary)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report_failed")
		return
	}
	writeWorkbook(w, file, fmt.Sprintf("attendance-%d-%02d.xlsx", year, month))
}

// Shared employee writes

type expenseRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

func (s *Server) handleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	d, ok := s.mounted(w, r)
	if !ok {
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	submitter, ok := d.(interface {
		SubmitExpense(ctx context.Context, amount float64, reason string) error
	})
	if !ok {
		writeError(w, http.StatusForbidden, "wrong_console")
		return
	}
	if err := submitter.SubmitExpense(r.Context(), req.Amount, req.Reason); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type leaveRequestBody struct {
	LeaveDate string `json:"leaveDate"`
	Reason    string `json:"reason"`
}

func (s *Server) handleApplyLeave(w http.ResponseWriter, r *http.Request) {
	d, ok := s.mounted(w, r)
	if !ok {
		return
	}
	var req leaveRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	applier, ok := d.(interface {
		ApplyLeave(ctx context.Context, leaveDate, reason string) error
	})
	if !ok {
		writeError(w, http.StatusForbidden, "wrong_console")
		return
	}
	if err := applier.ApplyLeave(r.Context(), req.LeaveDate, req.Reason); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeOpError maps a form rejection to 422 with the inline message;
// anything else is an internal failure.
func writeOpError(w http.ResponseWriter, err error) {
	if msg, ok := dashboard.AsFormError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg})
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

func writeWorkbook(w http.ResponseWriter, file *excelize.File, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_ = file.Write(w)
}
