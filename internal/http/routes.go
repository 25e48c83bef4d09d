package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router arma el árbol de rutas completo: endpoints OAuth sin tenant,
// management de stores y el subárbol tenant-scoped /{store}/...
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID, WithRecover, WithLogging, WithSecurityHeaders, h.WithIdentity)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := h.Repo.Ping(req.Context()); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// OAuth vive fuera del scope de tenant: el client determina el store.
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", h.Authorize)
		r.Post("/authorize", h.Authorize)
		r.Post("/allow", h.Allow)
		r.Post("/deny", h.Deny)
		r.Get("/token", h.Token)
		r.Post("/token", h.Token)
	})
	r.Get("/users/omniauth_hash", h.OmniauthHash)

	// Management de stores (god).
	r.Get("/stores", h.ListStores)
	r.Post("/stores", h.CreateStore)

	r.Route("/{store}", func(r chi.Router) {
		r.Use(h.WithStore)

		r.Get("/", h.GetStore)
		r.Put("/", h.UpdateStore)

		r.Get("/auth", h.LoginForm)
		r.With(WithRateLimit(h.Limiter)).Post("/auth", h.Login)
		r.Get("/login/{id}", h.LoginCheck)
		r.Post("/logout", h.Logout)
		r.Post("/logout/{id}", h.LogoutUser)

		r.Post("/users", h.Signup)
		r.Get("/signup/complete", h.SignupComplete)
		r.Get("/users/find", h.FindUsers)
		r.Post("/users/create", h.CreateUser)
		r.Get("/users/{id}", h.GetUser)
		r.Put("/users/{id}", h.UpdateUser)
		r.Delete("/users/{id}", h.DeleteUser)

		r.With(WithRateLimit(h.Limiter)).Post("/recovery", h.RecoveryStart)
		r.Get("/recovery/password", h.RecoveryPasswordForm)
		r.Post("/recovery/password", h.RecoveryPasswordSubmit)

		r.Get("/verify/{nonce}", h.VerifyForm)
		r.Post("/verify/{nonce}", h.VerifySubmit)
		r.Get("/v/{blob}", h.VerifyShort)
		r.Get("/deliveries/{id}", h.DeliveryStatus)

		r.Get("/clients", h.ListClients)
		r.Post("/clients", h.CreateClient)
		r.Put("/clients/{id}", h.UpdateClient)
	})

	return r
}
