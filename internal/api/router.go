package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/Farhad2590/traveltrade-backend/internal/api/httpx"
	"github.com/Farhad2590/traveltrade-backend/internal/api/validate"
	"github.com/Farhad2590/traveltrade-backend/internal/auth"
	"github.com/Farhad2590/traveltrade-backend/internal/config"
	"github.com/Farhad2590/traveltrade-backend/internal/metrics"
	"github.com/Farhad2590/traveltrade-backend/internal/middleware"
	"github.com/Farhad2590/traveltrade-backend/internal/models"
	"github.com/Farhad2590/traveltrade-backend/internal/services"
)

type Deps struct {
	Cfg         config.Config
	TM          *auth.TokenManager
	Bids        *services.BidService
	Payouts     *services.PayoutService
	Withdrawals *services.WithdrawalService
	Balances    *services.BalanceService
	Redis       *redis.Client // nil disables idempotency caching
}

// writeDomainErr maps the service error taxonomy onto status codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, models.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error(), nil)
	case errors.Is(err, models.ErrCheckNotApproved):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "check_not_approved", err.Error(), nil)
	case errors.Is(err, models.ErrInsufficientBalance):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error(), nil)
	case errors.Is(err, models.ErrConcurrencyConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict", "concurrent update, retry", nil)
	case errors.Is(err, models.ErrPaymentGateway):
		httpx.WriteError(w, http.StatusBadGateway, "payment_gateway_error", err.Error(), nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authMW := middleware.NewAuthMiddleware(d.TM, d.Cfg.Env)

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth (dev shortcut; real issuance is external) ----------
		r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if d.Cfg.Env != "dev" {
				httpx.WriteError(w, http.StatusNotImplemented, "not_implemented", "token issuance is handled by the identity service", nil)
				return
			}
			var req struct{ UserID, Role string }
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.UserID == "" {
				req.UserID = "00000000-0000-0000-0000-000000000000"
			}
			if req.Role == "" {
				req.Role = "user"
			}
			access, refresh, exp, err := d.TM.GeneratePair(req.UserID, req.Role)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"access_token":  access,
				"refresh_token": refresh,
				"expires_in":    int(time.Until(exp).Seconds()),
			})
		})

		r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				RefreshToken string `json:"refresh_token"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request", nil)
				return
			}
			claims, isRefresh, err := d.TM.ParseAny(req.RefreshToken)
			if err != nil || !isRefresh {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
				return
			}
			access, refresh, exp, err := d.TM.GeneratePair(claims.UserID, claims.Role)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"access_token":  access,
				"refresh_token": refresh,
				"expires_in":    int(time.Until(exp).Seconds()),
			})
		})

		// Everything below requires a verified actor.
		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)
			if d.Redis != nil {
				r.Use(middleware.Idempotency(d.Redis))
			}

			// ---------- bids ----------
			r.Post("/bids", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				var req struct {
					TravelerID        string          `json:"traveler_id"`
					PostID            string          `json:"post_id"`
					RequestType       string          `json:"request_type"`
					ParcelType        string          `json:"parcel_type"`
					ParcelWeight      decimal.Decimal `json:"parcel_weight"`
					ParcelDescription string          `json:"parcel_description"`
					IsImportantParcel bool            `json:"is_important_parcel"`
					TotalCost         decimal.Decimal `json:"total_cost"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				var errs validate.Errs
				for _, e := range []*validate.ErrField{
					validate.Required("traveler_id", req.TravelerID),
					validate.Required("post_id", req.PostID),
					validate.OneOf("request_type", req.RequestType, string(models.RequestSend), string(models.RequestBring)),
					validate.Positive("total_cost", req.TotalCost),
				} {
					if e != nil {
						errs = append(errs, *e)
					}
				}
				if len(errs) > 0 {
					httpx.WriteError(w, http.StatusBadRequest, "validation_failed", errs.Error(), errs)
					return
				}
				b, err := d.Bids.Create(r.Context(), services.CreateBidInput{
					SenderID:          u.UserID,
					TravelerID:        req.TravelerID,
					PostID:            req.PostID,
					RequestType:       models.RequestType(req.RequestType),
					ParcelType:        req.ParcelType,
					ParcelWeight:      req.ParcelWeight,
					ParcelDescription: req.ParcelDescription,
					IsImportantParcel: req.IsImportantParcel,
					TotalCost:         req.TotalCost,
				})
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, b)
			})

			r.Get("/bids/{id}", func(w http.ResponseWriter, r *http.Request) {
				b, err := d.Bids.GetByID(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, b)
			})

			r.Get("/bids", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				uid := r.URL.Query().Get("user_id")
				if uid == "" {
					uid = u.UserID
				}
				limit, offset := pagination(r)
				bids, err := d.Bids.ListByParticipant(r.Context(), uid, limit, offset)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, bids)
			})

			r.Post("/bids/{id}/transition", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				var req struct {
					TargetStatus string `json:"target_status"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetStatus == "" {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "target_status required", nil)
					return
				}
				b, err := d.Bids.RequestTransition(r.Context(), chi.URLParam(r, "id"), models.BidStatus(req.TargetStatus), u.UserID)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, b)
			})

			r.With(middleware.RequireRole("admin")).Post("/bids/{id}/check", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				var req struct {
					Decision string `json:"decision"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Decision == "" {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "decision required", nil)
					return
				}
				b, err := d.Bids.SetCheckStatus(r.Context(), chi.URLParam(r, "id"), models.CheckStatus(req.Decision), u.UserID)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, b)
			})

			// Recovery re-run; settle is idempotent so repeated calls are safe.
			r.With(middleware.RequireRole("admin")).Post("/bids/{id}/payout", func(w http.ResponseWriter, r *http.Request) {
				b, err := d.Payouts.TriggerPayout(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, b)
			})

			// ---------- withdrawals ----------
			r.Post("/withdrawals", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				var req struct {
					Amount      decimal.Decimal `json:"amount"`
					BankDetails string          `json:"bank_details"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				var errs validate.Errs
				for _, e := range []*validate.ErrField{
					validate.Positive("amount", req.Amount),
					validate.Required("bank_details", req.BankDetails),
				} {
					if e != nil {
						errs = append(errs, *e)
					}
				}
				if len(errs) > 0 {
					httpx.WriteError(w, http.StatusBadRequest, "validation_failed", errs.Error(), errs)
					return
				}
				wd, err := d.Withdrawals.Create(r.Context(), u.UserID, req.Amount, req.BankDetails)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, wd)
			})

			r.Get("/withdrawals", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				limit, offset := pagination(r)
				list, err := d.Withdrawals.ListByTraveler(r.Context(), u.UserID, limit, offset)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, list)
			})

			r.With(middleware.RequireRole("admin")).Get("/withdrawals/pending", func(w http.ResponseWriter, r *http.Request) {
				list, err := d.Withdrawals.ListPending(r.Context(), 100)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, list)
			})

			r.With(middleware.RequireRole("admin")).Post("/withdrawals/{id}/review", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				var req struct {
					Decision string `json:"decision"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				if e := validate.OneOf("decision", req.Decision, string(services.ReviewApprove), string(services.ReviewReject)); e != nil {
					httpx.WriteError(w, http.StatusBadRequest, "validation_failed", e.Msg, e)
					return
				}
				wd, err := d.Withdrawals.Review(r.Context(), chi.URLParam(r, "id"), services.ReviewDecision(req.Decision), u.UserID)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, wd)
			})

			r.With(middleware.RequireRole("admin")).Post("/withdrawals/{id}/pay", func(w http.ResponseWriter, r *http.Request) {
				wd, err := d.Withdrawals.ProcessPayment(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, wd)
			})

			// ---------- balances ----------
			r.Get("/balances/current", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				account := u.UserID
				if q := r.URL.Query().Get("account_id"); q != "" && u.Role == "admin" {
					account = q
				}
				b, err := d.Balances.Current(r.Context(), account)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, b)
			})

			r.Get("/balances/history", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.FromCtx(r.Context())
				account := u.UserID
				if q := r.URL.Query().Get("account_id"); q != "" && u.Role == "admin" {
					account = q
				}
				limit, offset := pagination(r)
				entries, err := d.Balances.History(r.Context(), account, limit, offset)
				if err != nil {
					writeDomainErr(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, entries)
			})
		})
	})

	return r
}
