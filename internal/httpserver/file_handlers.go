package httpserver

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"relaychat/internal/domain"
	"relaychat/internal/service"
)

// multipartOverhead is allowed on top of the file size for form fields and
// part headers.
const multipartOverhead = 1 << 20

type shareFileResponse struct {
	FileID    string    `json:"file_id"`
	MessageID int64     `json:"message_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileRoutes returns the sub-router mounted at /api/files.
func FileRoutes(files *service.FileService, maxBytes int64, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Post("/", handleShareFile(files, maxBytes))
	r.Get("/{fileID}", handleDownloadFile(files, log))
	return r
}

// handleShareFile godoc
// @Summary      Share an ephemeral file
// @Description  Upload a file for a friend. It can be downloaded once within 24 hours. Paid tier only.
// @Tags         files
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        to    formData  string  true  "Recipient identity"
// @Param        file  formData  file    true  "File"
// @Success      201  {object}  shareFileResponse
// @Failure      400  {object}  errorResponse
// @Failure      402  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /files [post]
func handleShareFile(files *service.FileService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, domain.InvalidRequest("failed to parse multipart form"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, domain.InvalidRequest("missing file"))
			return
		}
		defer file.Close()

		res, err := files.Share(r.Context(), service.UploadInput{
			From:     CurrentIdentity(r),
			To:       r.FormValue("to"),
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Body:     file,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, shareFileResponse{
			FileID:    res.File.ID,
			MessageID: res.MessageID,
			ExpiresAt: res.File.ExpiresAt,
		})
	}
}

// handleDownloadFile godoc
// @Summary      Download an ephemeral file
// @Description  Streams the file to its recipient. The file is removed shortly after; later requests get 404.
// @Tags         files
// @Security     BearerAuth
// @Produce      application/octet-stream
// @Param        fileID  path  string  true  "File ID"
// @Success      200
// @Failure      404  {object}  errorResponse
// @Router       /files/{fileID} [get]
func handleDownloadFile(files *service.FileService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, body, err := files.FetchForDownload(r.Context(), chi.URLParam(r, "fileID"), CurrentIdentity(r))
		if err != nil {
			writeError(w, err)
			return
		}
		defer body.Close()
		// The claim is spent whether or not the transfer completes.
		defer files.ScheduleDelete(f.ID)

		w.Header().Set("Content-Type", f.MimeType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			log.Warn("file transfer interrupted", zap.String("file_id", f.ID), zap.Error(err))
		}
	}
}
