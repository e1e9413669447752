// Package web exposes the editing session operations over HTTP.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfassembly/internal/filetype"
	"github.com/local/pdfassembly/internal/imagepdf"
	"github.com/local/pdfassembly/internal/retouch"
	"github.com/local/pdfassembly/internal/session"
)

// Dependencies wires the HTTP handlers.
type Dependencies struct {
	Manager *Manager
	Retouch retouch.Client // optional; nil disables instruction-based edits
	// MaxUploadBytes caps multipart memory buffering before temp files.
	MaxUploadBytes int64
}

type Handlers struct {
	deps     Dependencies
	detector *filetype.Detector
}

func New(deps Dependencies) *Handlers {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 64 << 20
	}
	return &Handlers{deps: deps, detector: filetype.New()}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/sessions", h.handleCreateSession)
	mux.HandleFunc("/sessions/", h.handleSession)
}

func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, _ := h.deps.Manager.Create()
	log.Info().Str("session_id", id).Msg("session created")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"session_id": id})
}

// handleSession routes /sessions/{id}[/...] by path segments.
func (h *Handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	sess, ok := h.deps.Manager.Get(parts[0])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.deps.Manager.Destroy(id)
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "files" && r.Method == http.MethodPost:
		h.handleIngest(w, r, sess)

	case len(parts) == 2 && parts[1] == "image" && r.Method == http.MethodPost:
		h.handleAddImage(w, r, sess)

	case len(parts) == 2 && parts[1] == "pages" && r.Method == http.MethodGet:
		h.writePages(w, sess)

	case len(parts) == 3 && parts[1] == "pages" && r.Method == http.MethodDelete:
		sess.DeletePage(parts[2])
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 4 && parts[1] == "pages" && parts[3] == "rotate" && r.Method == http.MethodPost:
		h.handleRotate(w, r, sess, parts[2])

	case len(parts) == 2 && parts[1] == "reorder" && r.Method == http.MethodPost:
		h.handleReorder(w, r, sess)

	case len(parts) == 2 && parts[1] == "save" && r.Method == http.MethodPost:
		h.handleSave(w, r, sess)

	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id": id,
			"message":    sess.Status(),
			"pages":      len(sess.Pages()),
		})

	case len(parts) == 2 && parts[1] == "reset" && r.Method == http.MethodPost:
		sess.Reset()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

// handleIngest accepts multipart uploads under the "files" field. PDFs are
// ingested as-is; JPEG/PNG uploads are wrapped as single-page PDFs first.
// Anything else rejects the whole batch before any work starts.
func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(h.deps.MaxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		http.Error(w, "missing files", http.StatusBadRequest)
		return
	}

	files := make([]session.File, 0, len(uploads))
	for _, hdr := range uploads {
		f, err := hdr.Open()
		if err != nil {
			http.Error(w, "cannot read upload", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			http.Error(w, "cannot read upload", http.StatusBadRequest)
			return
		}

		name := hdr.Filename
		if name == "" {
			name = "upload.pdf"
		}

		info := h.detector.Detect(data)
		switch info.Kind {
		case filetype.KindPDF:
			files = append(files, session.File{Name: name, Data: data})
		case filetype.KindImage:
			wrapped, err := imagepdf.Wrap(data)
			if err != nil {
				h.writeSessionError(w, err)
				return
			}
			files = append(files, session.File{Name: name + ".pdf", Data: wrapped})
		default:
			http.Error(w, info.Description, http.StatusUnsupportedMediaType)
			return
		}
	}

	if err := sess.Ingest(files); err != nil {
		h.writeSessionError(w, err)
		return
	}
	h.writePages(w, sess)
}

// handleAddImage accepts a single image (field "image"), optionally runs it
// through the retouch service (field "instruction"), and appends it as a new
// page.
func (h *Handlers) handleAddImage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(h.deps.MaxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "missing image", http.StatusBadRequest)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "cannot read image", http.StatusBadRequest)
		return
	}

	if instruction := r.FormValue("instruction"); instruction != "" {
		if h.deps.Retouch == nil {
			http.Error(w, "retouch service not configured", http.StatusServiceUnavailable)
			return
		}
		info := h.detector.Detect(data)
		resp, err := h.deps.Retouch.Adjust(r.Context(), retouch.Request{
			ImageData:   data,
			MIMEType:    info.MIMEType,
			Instruction: instruction,
		})
		if err != nil {
			h.writeRetouchError(w, err)
			return
		}
		data = resp.ImageData
	}

	if err := sess.AddImage(data); err != nil {
		h.writeSessionError(w, err)
		return
	}
	h.writePages(w, sess)
}

func (h *Handlers) handleRotate(w http.ResponseWriter, r *http.Request, sess *session.Session, pageID string) {
	dir := session.RotateDirection(r.URL.Query().Get("direction"))
	if dir != session.RotateLeft && dir != session.RotateRight {
		http.Error(w, "direction must be left or right", http.StatusBadRequest)
		return
	}
	sess.RotatePage(pageID, dir)
	w.WriteHeader(http.StatusNoContent)
}

type reorderReq struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (h *Handlers) handleReorder(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	defer r.Body.Close()
	var req reorderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !sess.Reorder(req.From, req.To) {
		http.Error(w, "index out of range", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSave assembles the output document and serves it as a download.
func (h *Handlers) handleSave(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	profile := session.CompressionProfile(r.URL.Query().Get("compression"))
	if profile == "" {
		profile = session.CompressionHigh
	}
	if profile != session.CompressionHigh && profile != session.CompressionLow {
		http.Error(w, "compression must be high or low", http.StatusBadRequest)
		return
	}

	result, err := sess.Save(profile)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", result.SuggestedFilename))
	_, _ = w.Write(result.Bytes)
}

func (h *Handlers) writePages(w http.ResponseWriter, sess *session.Session) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"pages": sess.Pages()})
}

func (h *Handlers) writeSessionError(w http.ResponseWriter, err error) {
	var unsupported *imagepdf.UnsupportedFormatError
	var ingestErr *session.IngestionError
	switch {
	case session.IsBusy(err):
		http.Error(w, "another operation is in progress", http.StatusConflict)
	case errors.Is(err, session.ErrNoPagesToSave):
		http.Error(w, "no pages to save", http.StatusBadRequest)
	case errors.As(err, &unsupported):
		http.Error(w, unsupported.Error(), http.StatusUnsupportedMediaType)
	case errors.As(err, &ingestErr):
		http.Error(w, fmt.Sprintf("failed to process %s", ingestErr.File), http.StatusUnprocessableEntity)
	default:
		log.Error().Err(err).Msg("operation failed")
		http.Error(w, "operation failed", http.StatusInternalServerError)
	}
}

func (h *Handlers) writeRetouchError(w http.ResponseWriter, err error) {
	switch {
	case retouch.IsMissingCredential(err):
		http.Error(w, "retouch service not configured", http.StatusServiceUnavailable)
	case retouch.IsInvalidCredential(err):
		http.Error(w, "retouch credential rejected", http.StatusBadGateway)
	case retouch.IsSafetyBlocked(err):
		http.Error(w, "adjustment blocked by safety filters", http.StatusUnprocessableEntity)
	case retouch.IsNoImage(err):
		http.Error(w, "service returned no image", http.StatusBadGateway)
	case retouch.IsRateLimited(err):
		http.Error(w, "retouch service rate limited", http.StatusTooManyRequests)
	default:
		log.Error().Err(err).Msg("retouch failed")
		http.Error(w, "retouch failed", http.StatusBadGateway)
	}
}
