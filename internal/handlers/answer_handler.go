package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mroshb/catchup/internal/services"
)

type AnswerHandler struct {
	streakService *services.StreakService
}

func NewAnswerHandler(streakService *services.StreakService) *AnswerHandler {
	return &AnswerHandler{streakService: streakService}
}

// RecordAnswer is called once an answer is stored. It responds 200 when every
// unit committed and 207 when some recipients failed; the body lists each unit.
func (h *AnswerHandler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var sub services.AnswerSubmission
	if err := decodeJSON(r, &sub); err != nil {
		respondWithAppError(w, err)
		return
	}

	report, err := h.streakService.RecordAnswer(ctx, sub)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	status := http.StatusOK
	if len(report.Failures()) > 0 {
		status = http.StatusMultiStatus
	}
	respondWithJSON(w, status, report)
}
