package http

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/tanaka-takurou/serverless-forecast-page-go/internal/errors"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/middleware"
)

// FileField is the multipart field carrying an uploaded series
const FileField = "file"

var validate = newValidator()

// newValidator reports fields by their json names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SampleRequest selects a built-in sample set
type SampleRequest struct {
	Kind string `json:"kind" validate:"required,oneof=sine cosine linear"`
}

// Bind implements render.Binder
func (s *SampleRequest) Bind(r *http.Request) error {
	return validate.Struct(s)
}

// TextRequest carries a pasted JSON array of numbers
type TextRequest struct {
	Text string `json:"text"`
}

// Bind implements render.Binder. Content checks belong to the dataset parser.
func (t *TextRequest) Bind(r *http.Request) error {
	return nil
}

// DataHandler replaces the current series
type DataHandler struct {
	service        ForecastServiceInterface
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
}

// NewDataHandler creates a new data handler. maxUploadBytes caps file uploads.
func NewDataHandler(service ForecastServiceInterface, maxUploadBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &DataHandler{
		service:        service,
		logger:         logger.With(slog.String("component", "data_handler")),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns a chi router for /api/data
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(middleware.ContentTypeValidator("application/json")).Post("/sample", h.ChangeSampleSet)
	r.With(middleware.ContentTypeValidator("application/json")).Post("/text", h.ChangeFromText)
	r.With(middleware.BodyLimit(h.maxUploadBytes)).Post("/file", h.ChangeFromFile)

	return r
}

// ChangeSampleSet handles POST /api/data/sample
func (h *DataHandler) ChangeSampleSet(w http.ResponseWriter, r *http.Request) {
	req := &SampleRequest{}
	if err := render.Bind(r, req); err != nil {
		h.errorHandler.HandleError(w, r, bindError(err))
		return
	}

	snap, err := h.service.ChangeSampleSet(r.Context(), req.Kind)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// ChangeFromText handles POST /api/data/text
func (h *DataHandler) ChangeFromText(w http.ResponseWriter, r *http.Request) {
	req := &TextRequest{}
	if err := render.Bind(r, req); err != nil {
		h.errorHandler.HandleError(w, r, bindError(err))
		return
	}

	snap, err := h.service.ChangeFromText(r.Context(), req.Text)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// ChangeFromFile handles POST /api/data/file with a multipart "file" field
func (h *DataHandler) ChangeFromFile(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		h.errorHandler.HandleError(w, r, &http.MaxBytesError{Limit: h.maxUploadBytes})
		return
	}
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(FileField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(FileField, "is required"))
		return
	}
	defer file.Close()

	h.logger.DebugContext(r.Context(), "file_received",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))

	snap, err := h.service.ChangeFromFile(r.Context(), file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// bindError keeps body size errors intact and maps the rest to 400s
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apierrors.FromValidator(err)
	}
	return apierrors.InvalidRequestWithError(err)
}
