package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/internal/hub"
	"github.com/DoyleJ11/codive/pkg/types"
)

const guestCookie = "guest_id"

type api struct {
	hub       *hub.Hub
	answers   *AnswerStore
	assistant Assistant
	log       *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusUnprocessableEntity)
		return false
	}
	return true
}

func hubStatus(err error) int {
	switch {
	case errors.Is(err, hub.ErrRoomExists):
		return http.StatusBadRequest
	case errors.Is(err, hub.ErrRoomNotFound), errors.Is(err, hub.ErrGuestNotFound):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrWrongPassword):
		return http.StatusForbidden
	case errors.Is(err, hub.ErrRoomStarted):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *api) createRoom(w http.ResponseWriter, r *http.Request) {
	var req types.RoomCreateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CodeID) == "" || req.PW == "" {
		http.Error(w, "codeID and pw are required", http.StatusUnprocessableEntity)
		return
	}
	var opts types.RoomOptions
	if req.Options != nil {
		opts = *req.Options
	}
	if err := a.hub.Create(r.Context(), req.CodeID, req.PW, opts); err != nil {
		http.Error(w, err.Error(), hubStatus(err))
		return
	}
	a.log.Info("room created", zap.String("room", req.CodeID))
	writeJSON(w, http.StatusCreated, struct {
		CodeID string `json:"codeID"`
	}{CodeID: req.CodeID})
}

func (a *api) enterRoom(w http.ResponseWriter, r *http.Request) {
	var req types.RoomEnterRequest
	if !decode(w, r, &req) {
		return
	}
	res := a.hub.Enter(r.Context(), req.CodeID, req.PW)
	if res.Err != nil {
		http.Error(w, res.Err.Error(), hubStatus(res.Err))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: guestCookie, Value: res.GuestID, Path: "/"})
	opts := res.Options
	writeJSON(w, http.StatusOK, types.RoomEnterResponse{GuestID: res.GuestID, Options: &opts})
}

func (a *api) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.hub.Stats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		http.Error(w, err.Error(), hubStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *api) guests(w http.ResponseWriter, r *http.Request) {
	guests, err := a.hub.Guests(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		http.Error(w, err.Error(), hubStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, guests)
}

func (a *api) guestCount(w http.ResponseWriter, r *http.Request) {
	guests, err := a.hub.Guests(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		http.Error(w, err.Error(), hubStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, types.GuestCount{Count: len(guests)})
}

func (a *api) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var ans types.Answer
	if !decode(w, r, &ans) {
		return
	}
	if ans.UserID == "" || ans.QuestionID <= 0 {
		http.Error(w, "user_id and question_id are required", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, a.answers.Add(ans))
}

func (a *api) listAnswers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.answers.All())
}

func (a *api) finishUser(w http.ResponseWriter, r *http.Request) {
	if err := a.hub.Finish(r.Context(), chi.URLParam(r, "userID")); err != nil {
		http.Error(w, err.Error(), hubStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) generateHint(w http.ResponseWriter, r *http.Request) {
	var req types.HintRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := a.assistant.Hint(r.Context(), req)
	if err != nil {
		a.log.Warn("hint failed", zap.Error(err))
		http.Error(w, "hint unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, types.HintResponse{Content: text})
}

func (a *api) generateText(w http.ResponseWriter, r *http.Request) {
	var req types.AnalysisRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := a.assistant.Analyze(r.Context(), req)
	if err != nil {
		a.log.Warn("analysis failed", zap.Error(err))
		http.Error(w, "analysis unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, types.AnalysisResponse{GeneratedText: text})
}

func (a *api) execute(w http.ResponseWriter, r *http.Request) {
	var req types.ExecuteRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := a.assistant.Execute(r.Context(), req)
	if err != nil {
		a.log.Warn("execution failed", zap.Error(err))
		http.Error(w, "execution unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
