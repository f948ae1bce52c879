package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"reportview/internal/assistant"
	"reportview/internal/render"
	"reportview/internal/report"
)

// assistantOffNotice is shown in the chat panel when no credential was
// loaded with the report.
const assistantOffNotice = "Trợ lý AI chưa được cấu hình cho báo cáo này."

// pageData is the report.html template input
type pageData struct {
	Title        string
	CreatedBy    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ExpiresIn    string
	RowCount     int
	ViewID       string
	View         *render.View
	Drilldowns   []render.Detail
	Greeting     string
	Assistant    bool
	OffNotice    string
	StripToken   bool
	EmptyMessage string
	NoData       string
}

type errorData struct {
	Status  int
	Message string
}

// openView loads the report, renders it and registers the result for the
// chat and drilldown endpoints.
func (s *Server) openView(ctx context.Context, id, token string) (*view, error) {
	rep, err := s.loader.Load(ctx, id, token)
	if err != nil {
		return nil, err
	}

	rendered, err := render.Build(rep.Dataset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrMalformed, err)
	}
	chatContext, err := assistant.BuildContext(rep.Record.Title, rep.Dataset.Rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", report.ErrMalformed, err)
	}

	v := &view{
		Report:     rep,
		Rendered:   rendered,
		Context:    chatContext,
		Drilldowns: render.Drilldowns(rep.Dataset),
	}
	if n := s.views.Add(v); n > 0 {
		s.logger.WithContext("evicted", n).Debug("view limit reached, oldest views dropped")
	}
	return v, nil
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	v, err := s.openView(r.Context(), r.PathValue("id"), token)
	if err != nil {
		s.renderError(w, err)
		return
	}

	rec := v.Report.Record
	s.renderTemplate(w, http.StatusOK, "report.html", pageData{
		Title:        rec.Title,
		CreatedBy:    rec.CreatedBy,
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
		ExpiresIn:    relativeTo(rec.ExpiresAt, s.now()),
		RowCount:     len(v.Report.Dataset.Rows),
		ViewID:       v.ID,
		View:         v.Rendered,
		Drilldowns:   v.Drilldowns,
		Greeting:     assistant.Greeting,
		Assistant:    v.Report.APIKey != "" && s.newGenerator != nil,
		OffNotice:    assistantOffNotice,
		StripToken:   token != "",
		EmptyMessage: render.EmptyMessage,
		NoData:       render.NoDataMessage,
	})
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	ae := report.AsAccessError(err)
	s.renderTemplate(w, ae.Status, "error.html", errorData{Status: ae.Status, Message: ae.Message})
}

// renderTemplate executes into a buffer so a template failure never leaves
// a half-written page.
func (s *Server) renderTemplate(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		}).Error("failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// reportResponse is the JSON form of a loaded report
type reportResponse struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Type      report.Type      `json:"type"`
	Layout    string           `json:"layout"`
	CreatedBy string           `json:"createdBy"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Columns   []report.Column  `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Assistant bool             `json:"assistant"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	rep, err := s.loader.Load(r.Context(), r.PathValue("id"), r.URL.Query().Get("token"))
	if err != nil {
		ae := report.AsAccessError(err)
		writeJSON(w, ae.Status, errorResponse{Error: ae.Code, Message: ae.Message})
		return
	}

	rows := make([]map[string]any, 0, len(rep.Dataset.Rows))
	for _, row := range rep.Dataset.Rows {
		rows = append(rows, row.Fields())
	}
	columns := rep.Dataset.Columns
	if columns == nil {
		columns = []report.Column{}
	}
	writeJSON(w, http.StatusOK, reportResponse{
		ID:        rep.Record.ID,
		Title:     rep.Record.Title,
		Type:      rep.Record.Type,
		Layout:    rep.Record.Type.Layout().String(),
		CreatedBy: rep.Record.CreatedBy,
		CreatedAt: rep.Record.CreatedAt,
		ExpiresAt: rep.Record.ExpiresAt,
		Columns:   columns,
		Rows:      rows,
		Assistant: rep.APIKey != "",
	})
}

func (s *Server) handleDrilldown(w http.ResponseWriter, r *http.Request) {
	v, ok := s.views.Get(r.PathValue("viewID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "view_not_found", Message: "Phiên xem báo cáo đã hết hạn. Vui lòng tải lại trang."})
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_index", Message: "Chỉ số dòng không hợp lệ."})
		return
	}

	detail, err := render.Drilldown(v.Report.Dataset, index)
	switch {
	case errors.Is(err, render.ErrRowNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "row_not_found", Message: "Không tìm thấy dòng dữ liệu."})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no_drilldown", Message: "Báo cáo này không có chi tiết chứng chỉ."})
	default:
		writeJSON(w, http.StatusOK, detail)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"views":  s.views.Len(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
