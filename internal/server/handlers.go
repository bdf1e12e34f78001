package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/campusfind/internal/imaging"
	"github.com/zombor/campusfind/internal/item"
	"github.com/zombor/campusfind/internal/session"
	"github.com/zombor/campusfind/internal/submission"
)

// maxUploadSize allows high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionHeader)
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, item.ErrItemNotFound), errors.Is(err, item.ErrNoOriginal):
		return http.StatusNotFound
	case errors.Is(err, item.ErrWrongInstitution),
		errors.Is(err, item.ErrNotAdmin),
		errors.Is(err, item.ErrOwnItem):
		return http.StatusForbidden
	case errors.Is(err, item.ErrNotUnclaimed),
		errors.Is(err, item.ErrNotPending),
		errors.Is(err, item.ErrDuplicateID),
		errors.Is(err, submission.ErrAnalysisInProgress):
		return http.StatusConflict
	case errors.Is(err, item.ErrInvalidReport),
		errors.Is(err, submission.ErrNoImage),
		errors.Is(err, imaging.ErrUnsupportedFormat),
		errors.Is(err, session.ErrInvalidRole),
		errors.Is(err, session.ErrMissingCollege),
		errors.Is(err, session.ErrMissingName):
		return http.StatusBadRequest
	case errors.Is(err, submission.ErrNoSession), errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError logs err and writes it with its mapped status. Internal
// errors are not echoed to the client.
func writeDomainError(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		writeError(w, "Internal server error", code)
		return
	}
	slog.Debug(msg, "error", err)
	writeError(w, err.Error(), code)
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

type loginRequest struct {
	Role        session.Role `json:"role"`
	CollegeCode string       `json:"collegeCode"`
	Name        string       `json:"name"`
}

type sessionResponse struct {
	Token     string           `json:"token,omitempty"`
	Identity  session.Identity `json:"identity"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// handleLogin opens a session for the claimed identity
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	identity, err := session.NewIdentity(req.Role, req.CollegeCode, req.Name)
	if err != nil {
		writeDomainError(w, "Rejected login", err)
		return
	}

	token, sess, err := s.sessions.Issue(identity)
	if err != nil {
		writeDomainError(w, "Error issuing session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("Session opened", "user", identity.UserID, "college", identity.CollegeID, "role", identity.Role)

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		Identity:  sess.Identity,
		ExpiresAt: sess.ExpiresAt,
	})
}

// handleGetSession returns the current identity
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Identity:  sess.Identity,
		ExpiresAt: sess.ExpiresAt,
	})
}

// handleLogout drops the session's draft and clears the cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.workflow.Discard(sess.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleListItems returns the institution's items matching ?q=
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	items := s.items.Browse(sess.Identity.Actor(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, items)
}

// visibleItem returns the item if it belongs to the session's institution.
// Other institutions' items are reported as not found.
func (s *Server) visibleItem(id string, sess *session.Session) (*item.Item, error) {
	it, err := s.items.GetItem(id)
	if err != nil {
		return nil, err
	}
	if !item.MatchesCollege(it, sess.Identity.CollegeID) {
		return nil, item.ErrItemNotFound
	}
	return it, nil
}

// handleGetItem returns a single item
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	it, err := s.visibleItem(r.PathValue("id"), sess)
	if err != nil {
		writeDomainError(w, "Error getting item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// handleGetOriginal returns the original upload of an item
func (s *Server) handleGetOriginal(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id := r.PathValue("id")
	if _, err := s.visibleItem(id, sess); err != nil {
		writeDomainError(w, "Error getting item", err)
		return
	}

	data, contentType, err := s.items.GetOriginalFile(id)
	if err != nil {
		writeDomainError(w, "Error getting original upload", err)
		return
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleClaim marks an item as pending for the signed-in user
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	it, err := s.items.Claim(r.PathValue("id"), sess.Identity.Actor())
	if err != nil {
		writeDomainError(w, "Error claiming item", err)
		return
	}
	slog.Info("Item claimed", "id", it.ID, "claimer", it.ClaimerID)
	writeJSON(w, http.StatusOK, it)
}

// handleConfirmClaim completes a pending claim
func (s *Server) handleConfirmClaim(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	it, err := s.items.ConfirmClaim(r.PathValue("id"), sess.Identity.Actor())
	if err != nil {
		writeDomainError(w, "Error confirming claim", err)
		return
	}
	slog.Info("Claim confirmed", "id", it.ID, "claimer", it.ClaimerID)
	writeJSON(w, http.StatusOK, it)
}

// handleFound lists the items the signed-in user reported
func (s *Server) handleFound(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, s.items.Found(sess.Identity.Actor()))
}

// handleClaimed lists the items the signed-in user claimed
func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, s.items.Claimed(sess.Identity.Actor()))
}

// draftKey ties the session's draft to the session's lifetime
func draftKey(sess *session.Session) submission.Key {
	return submission.Key{ID: sess.ID, ExpiresAt: sess.ExpiresAt}
}

// handleGetDraft returns the session's draft report
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, s.workflow.Draft(draftKey(sess)))
}

// handleEditDraft applies field edits to the draft
func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var edits submission.Edits
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.workflow.Edit(draftKey(sess), edits))
}

// handleSelectImage attaches an uploaded photo to the draft and analyses it
func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		msg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			msg = "No file was selected. Please choose a photo to upload."
		}
		writeError(w, msg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	upload := item.Upload{
		Filename:    header.Filename,
		ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	}

	form, err := s.workflow.SelectImage(r.Context(), draftKey(sess), upload)
	if err != nil {
		slog.Error("Error processing image", "filename", header.Filename, "content_type", upload.ContentType, "error", err)
		writeError(w, "That file could not be read as a photo. Please try a JPEG, PNG or HEIC image.", statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// uploadContentType falls back to the file extension when the browser sends
// no content type
func uploadContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleClearDraft resets the draft
func (s *Server) handleClearDraft(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, s.workflow.Clear(draftKey(sess)))
}

type publishResponse struct {
	Item  *item.Item      `json:"item"`
	Draft submission.Form `json:"draft"`
}

// handlePublish stores the draft as a new item
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	it, draft, err := s.workflow.Publish(draftKey(sess), sess.Identity.Actor())
	if err != nil {
		writeDomainError(w, "Error publishing item", err)
		return
	}
	writeJSON(w, http.StatusCreated, publishResponse{Item: it, Draft: draft})
}
