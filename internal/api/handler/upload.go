package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/api/middleware"
	"github.com/Rrens/flagr/internal/api/response"
	"github.com/Rrens/flagr/internal/security"
	"github.com/Rrens/flagr/internal/service"
)

// multipartOverhead is the allowance for form boundaries and headers on
// top of the file size limit
const multipartOverhead = 1 << 20

// UploadHandler handles document upload endpoints
type UploadHandler struct {
	analysis *service.AnalysisService
	maxBytes int64
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(analysis *service.AnalysisService, maxBytes int64) *UploadHandler {
	return &UploadHandler{analysis: analysis, maxBytes: maxBytes}
}

// Upload accepts a multipart "file" and analyzes it. With ?async=true the
// pending session is returned at once with 202 and the analysis lands in
// it later; otherwise the analyzed session is returned with 201.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds the %d MB upload limit", h.maxBytes>>20))
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "failed to read file")
		return
	}

	upload := service.Upload{
		Filename: header.Filename,
		Data:     data,
		Provider: r.FormValue("provider"),
		Model:    r.FormValue("model"),
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		pending, err := h.analysis.Start(r.Context(), userID, upload)
		if err != nil {
			writeUploadError(w, header.Filename, err)
			return
		}
		response.Accepted(w, pending)
		return
	}

	sess, err := h.analysis.Analyze(r.Context(), userID, upload)
	if err != nil {
		writeUploadError(w, header.Filename, err)
		return
	}
	response.Created(w, sess)
}

func writeUploadError(w http.ResponseWriter, filename string, err error) {
	var invalid *security.ValidationError
	switch {
	case errors.As(err, &invalid):
		response.BadRequest(w, invalid.Message)
	case errors.Is(err, service.ErrEmptyDocument):
		response.UnprocessableEntity(w, fmt.Sprintf("File '%s' is empty or could not be read.", filename))
	case errors.Is(err, service.ErrSessionsNotLoaded):
		response.Unauthorized(w, err.Error())
	default:
		log.Warn().Err(err).Str("filename", filename).Msg("document rejected")
		response.UnprocessableEntity(w, fmt.Sprintf("Error processing file '%s': %s", filename, err))
	}
}
