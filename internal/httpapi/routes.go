package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/internal/hub"
	"github.com/DoyleJ11/codive/internal/metrics"
	"github.com/DoyleJ11/codive/internal/ws"
)

type Deps struct {
	Answers   *AnswerStore
	Assistant Assistant
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

func SetupRoutes(h *hub.Hub, deps Deps) http.Handler {
	if deps.Answers == nil {
		deps.Answers = NewAnswerStore()
	}
	if deps.Assistant == nil {
		deps.Assistant = StubAssistant{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	a := &api{hub: h, answers: deps.Answers, assistant: deps.Assistant, log: deps.Log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	r.Get("/ws/{code}", ws.Handler(h, deps.Log))

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return deps.Metrics.InstrumentHandler(next) })

		r.Post("/api/room_create", a.createRoom)
		r.Post("/api/room/enter", a.enterRoom)
		r.Get("/api/room/{code}/user_stats", a.userStats)
		r.Get("/api/room/{code}/guests", a.guests)
		r.Get("/api/room/{code}/guestcount", a.guestCount)
		r.Post("/api/answers", a.submitAnswer)
		r.Get("/api/answers", a.listAnswers)
		r.Get("/api/answers/", a.listAnswers)
		r.Patch("/api/user/finish/{userID}", a.finishUser)

		r.Post("/generate-hint/", a.generateHint)
		r.Post("/generate-text/", a.generateText)
		r.Post("/execute-TimeAndResult", a.execute)
		r.Post("/execute-code/", a.execute)
	})
	return r
}
