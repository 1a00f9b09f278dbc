// internal/meeting/handler.go
package meeting

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"campusmeet/internal/schedule"
)

// Handler exposes the Service over JSON/HTTP. Authentication is the
// collaborator's concern: the verified actor id arrives in the
// X-User-ID header.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts every meeting endpoint on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/meetings", h.handleCreate)
	r.Route("/meetings/{meetingID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/join", h.handleRequestJoin)
		r.Delete("/join", h.handleCancelJoin)
		r.Post("/join/{userID}/decision", h.handleDecide)
		r.Put("/availability", h.handleSubmitAvailability)
		r.Get("/slots", h.handleSlots)
		r.Post("/announcements", h.handleAddAnnouncement)
		r.Delete("/announcements/{announcementID}", h.handleRemoveAnnouncement)
		r.Post("/attendance", h.handleStartAttendance)
		r.Delete("/attendance", h.handleEndAttendance)
		r.Post("/attendance/code", h.handleSubmitCode)
		r.Get("/attendance", h.handleAttendanceStatus)
	})
	return r
}

func actorID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func meetingID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "meetingID"))
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrMeetingNotFound), errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidSlot), errors.Is(err, ErrInvalidCode):
		status = http.StatusBadRequest
	case errors.Is(err, ErrAlreadyRequested), errors.Is(err, ErrMeetingFull),
		errors.Is(err, ErrInvalidStateTransition), errors.Is(err, ErrSessionActive),
		errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrSessionExpired):
		status = http.StatusGone
	case errors.Is(err, ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		http.Error(w, "missing X-User-ID", http.StatusUnauthorized)
		return
	}
	var input CreateMeetingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := h.service.CreateMeeting(r.Context(), actor, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	m, err := h.service.GetMeeting(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleRequestJoin(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	var info JoinInfo
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	m, err := h.service.RequestJoin(r.Context(), id, actorID(r), info)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleCancelJoin(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	m, err := h.service.CancelJoin(r.Context(), id, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Decision Decision `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := h.service.DecideJoinRequest(r.Context(), id, actorID(r), chi.URLParam(r, "userID"), req.Decision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleSubmitAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Slots []schedule.SlotID `json:"slots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := h.service.SubmitAvailability(r.Context(), id, actorID(r), req.Slots)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	slots, rate, err := h.service.SlotProjections(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Slots             []SlotProjection `json:"slots"`
		ParticipationRate int              `json:"participation_rate"`
	}{Slots: slots, ParticipationRate: rate})
}

func (h *Handler) handleAddAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	var draft AnnouncementDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := h.service.AddAnnouncement(r.Context(), id, actorID(r), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleRemoveAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	announcementID, err := uuid.Parse(chi.URLParam(r, "announcementID"))
	if err != nil {
		http.Error(w, "invalid announcement ID", http.StatusBadRequest)
		return
	}
	m, err := h.service.RemoveAnnouncement(r.Context(), id, actorID(r), announcementID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleStartAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	m, code, err := h.service.StartAttendance(r.Context(), id, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Code    string   `json:"code"`
		Meeting *Meeting `json:"meeting"`
	}{Code: code, Meeting: m})
}

func (h *Handler) handleEndAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	m, err := h.service.EndAttendance(r.Context(), id, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleSubmitCode(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := h.service.SubmitAttendanceCode(r.Context(), id, actorID(r), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleAttendanceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := meetingID(r)
	if err != nil {
		http.Error(w, "invalid meeting ID", http.StatusBadRequest)
		return
	}
	status, err := h.service.AttendanceStatusFor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
