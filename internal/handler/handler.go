package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/config"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/progress"
	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/repository"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mqChannel   *amqp.Channel
	progress    *progress.Store

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mqCh *amqp.Channel, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mqChannel:   mqCh,
		progress: progress.NewStore(
			rdb,
			time.Duration(cfg.Redis.ProgressExpiration)*time.Second,
			time.Duration(cfg.Redis.OperationExpiration)*time.Second,
		),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		adminOnly := h.RequiredRole(domain.RoleAdmin)

		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Get("/optimizations", h.GetMyOptimizationRuns)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/candidates", func(r chi.Router) {
			r.Get("/", h.GetAllCandidates)
			r.With(adminOnly).Post("/", h.CreateCandidate)
			r.With(adminOnly).Post("/import", h.ImportCandidates)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.candidate)
				r.Get("/", h.GetCandidate)
				r.With(adminOnly).Patch("/", h.UpdateCandidate)
				r.With(adminOnly).Delete("/", h.DeleteCandidate)
			})
		})

		r.Route("/optimizations", func(r chi.Router) {
			r.Get("/", h.GetAllOptimizationRuns)
			r.Post("/", h.CreateOptimizationRun)
			r.With(adminOnly).Post("/preview", h.PreviewOptimization) // 同步计算，只允许管理员调用
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.optimizationRun)
				r.Get("/", h.GetOptimizationRun)
				r.Get("/progress", h.GetOptimizationProgress)
			})
		})
	})
}
