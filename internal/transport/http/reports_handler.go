package http

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "noisereports/internal/errors"
	"noisereports/internal/services"
)

// OverviewFailuresHeader lists the overview categories that failed to aggregate
const OverviewFailuresHeader = "X-Overview-Failures"

const maxFormMemory = 1 << 20

// ReportsHandler serves folder browsing, downloads and cache statistics
type ReportsHandler struct {
	service      ReportServiceInterface
	validator    RequestValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(service ReportServiceInterface, validator RequestValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ReportsHandler {
	return &ReportsHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "reports_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the report routes
func (h *ReportsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/folders", h.ListFolders)
		r.With(h.FolderCtx).Get("/folders/{folderID}/files", h.ListFiles)
		r.Get("/cache/stats", h.CacheStats)
	})

	r.Post("/downloads", h.Download)

	return r
}

// FolderCtx rejects folder ids that cannot be Drive ids
func (h *ReportsHandler) FolderCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		folderID := chi.URLParam(r, "folderID")
		if folderID == "" || strings.ContainsAny(folderID, "'\\/ ") {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("folderID", "Invalid folder id"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListFolders handles GET /api/folders
func (h *ReportsHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.service.ListFolders(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"folders": folders,
		"count":   len(folders),
	})
}

// ListFiles handles GET /api/folders/{folderID}/files
func (h *ReportsHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID := chi.URLParam(r, "folderID")
	files, err := h.service.ListFiles(r.Context(), folderID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"folder_id": folderID,
		"files":     files,
		"count":     len(files),
	})
}

// CacheStats handles GET /api/cache/stats
func (h *ReportsHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.CacheStats())
}

// Download handles POST /api/downloads. The body is JSON or a form post with
// repeated files and options fields.
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	req, err := decodeDownloadRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "building download",
		slog.String("request_id", reqID),
		slog.String("folder_id", req.FolderID),
		slog.Int("files", len(req.FileIDs)),
		slog.Any("options", req.Options))

	archive, err := h.service.BuildArchive(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if failures := archive.OverviewFailures(); len(failures) > 0 {
		w.Header().Set(OverviewFailuresHeader, strings.Join(failures, ","))
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": archive.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(archive.Data); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write download",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
	}
}

// decodeDownloadRequest reads a JSON or form encoded download request
func decodeDownloadRequest(r *http.Request) (services.DownloadRequest, error) {
	var req services.DownloadRequest

	switch render.GetRequestContentType(r) {
	case render.ContentTypeJSON:
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
	case render.ContentTypeForm:
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form body: %w", err)
		}
		formRequest(&req, r)
	default:
		contentType := r.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "multipart/form-data") {
			return req, fmt.Errorf("unsupported content type %q", contentType)
		}
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return req, fmt.Errorf("invalid form body: %w", err)
		}
		formRequest(&req, r)
	}

	req.FolderID = strings.TrimSpace(req.FolderID)
	return req, nil
}

func formRequest(req *services.DownloadRequest, r *http.Request) {
	req.FolderID = r.PostForm.Get("folder")
	req.FileIDs = nonEmpty(r.PostForm["files"])
	req.Options = nonEmpty(r.PostForm["options"])
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
