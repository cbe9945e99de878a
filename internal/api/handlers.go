package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/schedule-engine/internal/schedule"
)

func availabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		var start, end time.Time
		if date := r.URL.Query().Get("date"); date != "" {
			start, err = time.Parse("2006-01-02", date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			end = start
		} else {
			start, err = time.Parse("2006-01-02", r.URL.Query().Get("start"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start", "start must be YYYY-MM-DD")
				return
			}
			end, err = time.Parse("2006-01-02", r.URL.Query().Get("end"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end", "end must be YYYY-MM-DD")
				return
			}
		}

		avail, err := svc.Availability(r.Context(), doctorID, start, end)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(avail))
	}
}

func conflictCheckHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		var req ConflictCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		cfg, err := req.Schedule.toConfig(doctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
			return
		}
		windowEnd, err := windowEndInstant(cfg, req.WindowEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_window_end", err.Error())
			return
		}

		report, err := svc.DetectConflicts(r.Context(), doctorID, cfg, windowEnd)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, ConflictCheckResponse{
			HasConflicts: report.HasConflicts,
			Total:        report.Total,
			Conflicts:    report.Conflicts,
		})
	}
}

func applyScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		var req ApplyScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		cfg, err := req.Schedule.toConfig(doctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
			return
		}
		windowEnd, err := windowEndInstant(cfg, req.WindowEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_window_end", err.Error())
			return
		}

		cancelIDs := make([]uuid.UUID, 0, len(req.CancelIDs))
		for _, raw := range req.CancelIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_cancel_id", "cancel_appointment_ids must be valid UUIDs")
				return
			}
			cancelIDs = append(cancelIDs, id)
		}

		result, err := svc.ApplySchedule(r.Context(), doctorID, cfg, windowEnd, req.CancelConflicting, cancelIDs)
		if err != nil {
			handleApplyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ApplyScheduleResponse{
			DoctorID:     doctorID,
			CancelledIDs: result.CancelledIDs,
		})
	}
}

func regenerateHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		regen := schedule.RegenerationRequest{}
		switch req.Scope {
		case "doctor":
			id, err := uuid.Parse(req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			regen.DoctorID = id
		case "clinic":
			id, err := uuid.Parse(req.ClinicID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
				return
			}
			regen.ClinicID = id
		default:
			writeError(w, http.StatusBadRequest, "invalid_scope", "scope must be clinic or doctor")
			return
		}

		var err error
		regen.From, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
			return
		}
		regen.To, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
			return
		}

		report, err := svc.Regenerate(r.Context(), regen)
		if err != nil {
			if errors.Is(err, schedule.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

// windowEndInstant resolves the optional inclusive YYYY-MM-DD window end into
// an exclusive clinic-local instant, defaulting to the end of the current
// clinic-local year.
func windowEndInstant(cfg schedule.ScheduleConfig, raw string) (time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Date(time.Now().In(loc).Year()+1, time.January, 1, 0, 0, 0, 0, loc), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc).AddDate(0, 0, 1), nil
}

func toAvailabilityResponse(avail *schedule.RangeAvailability) AvailabilityResponse {
	resp := AvailabilityResponse{
		DoctorID: avail.DoctorID,
		Days:     make([]DayAvailabilityResponse, 0, len(avail.Days)),
		Summary:  avail.Summary,
	}
	for _, day := range avail.Days {
		out := DayAvailabilityResponse{Date: day.Date, Slots: make([]SlotResponse, 0, len(day.Slots))}
		for _, s := range day.Slots {
			out.Slots = append(out.Slots, SlotResponse{
				StartsAt:      s.StartsAt,
				EndsAt:        s.EndsAt,
				Shift:         s.Shift,
				Status:        string(s.Status),
				IsPast:        s.IsPast,
				AppointmentID: s.AppointmentID,
			})
		}
		resp.Days = append(resp.Days, out)
	}
	return resp
}

func handleAvailabilityError(w http.ResponseWriter, err error) {
	var integrity *schedule.DataIntegrityError
	switch {
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.As(err, &integrity):
		writeError(w, http.StatusInternalServerError, "data_integrity_violation", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleApplyError(w http.ResponseWriter, err error) {
	var blocked *schedule.ConflictBlockedError
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusConflict, struct {
			ErrorResponse
			Conflicts []schedule.ConflictingAppointment `json:"conflicts"`
		}{
			ErrorResponse: ErrorResponse{Error: "conflict_blocked", Details: blocked.Error()},
			Conflicts:     blocked.Conflicts,
		})
	case errors.Is(err, schedule.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
