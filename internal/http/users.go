package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/vanilla/internal/observability/logger"
	"github.com/dropDatabas3/vanilla/internal/session"
	"github.com/dropDatabas3/vanilla/internal/store/core"
	"github.com/dropDatabas3/vanilla/internal/user"
	"github.com/dropDatabas3/vanilla/internal/validation"
)

type userDTO struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	MobileNumber   string     `json:"mobile_number,omitempty"`
	MobileVerified bool       `json:"mobile_verified"`
	EmailAddress   string     `json:"email_address,omitempty"`
	EmailVerified  bool       `json:"email_verified"`
	BirthDate      string     `json:"birth_date,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	Activated      bool       `json:"activated"`
	LoggedIn       bool       `json:"logged_in"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func toUserDTO(u *core.User) userDTO {
	return userDTO{
		ID:             u.ID,
		Name:           u.Name,
		MobileNumber:   u.MobileNumber,
		MobileVerified: u.MobileVerified,
		EmailAddress:   u.EmailAddress,
		EmailVerified:  u.EmailVerified,
		BirthDate:      u.BirthDate,
		Gender:         u.Gender,
		Activated:      u.Activated,
		LoggedIn:       u.LoggedIn,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		DeletedAt:      u.DeletedAt,
	}
}

type userPayload struct {
	Name            *string `json:"name"`
	MobileNumber    *string `json:"mobile_number"`
	EmailAddress    *string `json:"email_address"`
	BirthDate       *string `json:"birth_date"`
	Gender          *string `json:"gender"`
	Password        *string `json:"password"`
	Confirmation    *string `json:"password_confirmation"`
	CurrentPassword *string `json:"current_password"`

	// Atributos privilegiados: solo god puede tocarlos.
	Activated      *bool `json:"activated"`
	MobileVerified *bool `json:"mobile_verified"`
	EmailVerified  *bool `json:"email_verified"`
}

// loadStoreUser resuelve {id} dentro del store del path.
func (h *Handlers) loadStoreUser(w http.ResponseWriter, r *http.Request) (*core.User, bool) {
	st := storeFrom(r.Context())
	u, err := h.Repo.GetAliveUser(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) || (err == nil && u.StoreID != st.ID) {
		WriteError(w, http.StatusNotFound, "user_not_found", "unknown user")
		return nil, false
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return nil, false
	}
	return u, true
}

// canActOn decide si el caller puede operar sobre el usuario: god, o el
// propio usuario (por identidad administrativa o transitional/bearer).
func (h *Handlers) canActOn(w http.ResponseWriter, r *http.Request, u *core.User) bool {
	if session.RequireSelfOrGod(identityFrom(r.Context()), u.ID) == nil {
		return true
	}
	current, ok := h.transitionalUser(w, r)
	if !ok {
		return false
	}
	if current != nil && current.ID == u.ID {
		return true
	}
	WriteError(w, http.StatusForbidden, "forbidden", "insufficient privileges")
	return false
}

// FindUsers: GET /{store}/users/find (god)
// Búsqueda admin exacta por name/mobile/email.
func (h *Handlers) FindUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	st := storeFrom(r.Context())
	q := r.URL.Query()
	filter := core.UserFilter{
		Name:         validation.NormalizeName(q.Get("name")),
		MobileNumber: validation.NormalizeMobile(q.Get("mobile_number")),
		EmailAddress: validation.NormalizeEmail(q.Get("email_address")),
	}
	if filter.Empty() {
		WriteError(w, http.StatusBadRequest, "missing_criteria", "at least one search field is required")
		return
	}
	found, err := h.Repo.FindUsers(r.Context(), st.ID, filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	out := make([]userDTO, 0, len(found))
	for _, u := range found {
		out = append(out, toUserDTO(u))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

// GetUser: GET /{store}/users/{id} (self o god)
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.loadStoreUser(w, r)
	if !ok {
		return
	}
	if !h.canActOn(w, r, u) {
		return
	}
	etag := fmt.Sprintf(`"%s-%d"`, u.ID, u.UpdatedAt.Unix())
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", u.UpdatedAt.UTC().Format(http.TimeFormat))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	WriteJSON(w, http.StatusOK, toUserDTO(u))
}

// CreateUser: POST /{store}/users/create (god)
// Alta administrativa: a diferencia del signup, puede setear atributos
// privilegiados y no dispara verificación.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireGod(w, r) {
		return
	}
	st := storeFrom(r.Context())
	var in userPayload
	if !ReadJSON(w, r, &in) {
		return
	}
	u := &core.User{StoreID: st.ID}
	applyPayload(u, &in, true)

	ch := user.Changes{Password: in.Password, Confirmation: in.Confirmation}
	if in.Password == nil {
		ch = user.Changes{}
	}
	errs, err := h.Users.Save(r.Context(), st, u, ch)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}
	logger.From(r.Context()).Info("user created",
		logger.Store(st.Name), logger.UserID(u.ID))
	WriteJSON(w, http.StatusCreated, toUserDTO(u))
}

// UpdateUser: PUT /{store}/users/{id} (self o god)
// El cambio de email/móvil de un no-god dispara un nonce de change; god
// saltea la verificación.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	u, ok := h.loadStoreUser(w, r)
	if !ok {
		return
	}
	if !h.canActOn(w, r, u) {
		return
	}
	var in userPayload
	if !ReadJSON(w, r, &in) {
		return
	}

	god := session.RequireGod(identityFrom(r.Context())) == nil
	prevMobile, prevEmail := u.MobileNumber, u.EmailAddress
	applyPayload(u, &in, god)

	ch := user.Changes{Password: in.Password, Confirmation: in.Confirmation, CurrentPassword: in.CurrentPassword}
	if in.Password == nil {
		ch = user.Changes{CurrentPassword: in.CurrentPassword}
	} else if !god {
		ch.RequireCurrent = true
	}
	errs, err := h.Users.Save(r.Context(), st, u, ch)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if len(errs) > 0 {
		WriteValidationErrors(w, errs)
		return
	}

	// Endpoints nuevos sin verificar: se dispara el change nonce, salvo
	// para god.
	var nonceID string
	if !god {
		switch {
		case u.MobileNumber != "" && u.MobileNumber != prevMobile:
			n, ok := h.sendVerification(w, r, st, u, core.EndpointMobile, core.ContextChange, "")
			if !ok {
				return
			}
			nonceID = n.ID
		case u.EmailAddress != "" && u.EmailAddress != prevEmail:
			n, ok := h.sendVerification(w, r, st, u, core.EndpointEmail, core.ContextChange, "")
			if !ok {
				return
			}
			nonceID = n.ID
		}
	}

	out := map[string]any{"user": toUserDTO(u)}
	if nonceID != "" {
		out["nonce_id"] = nonceID
	}
	WriteJSON(w, http.StatusOK, out)
}

// DeleteUser: DELETE /{store}/users/{id} (self o god)
// Soft delete, idempotente a nivel dominio.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	u, ok := h.loadStoreUser(w, r)
	if !ok {
		return
	}
	if !h.canActOn(w, r, u) {
		return
	}
	user.Delete(u, time.Now())
	if err := h.Repo.UpdateUser(r.Context(), u); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if key := h.Sessions.PeekKey(r); key != "" {
		_ = h.Sessions.ClearTransitional(r.Context(), key)
	}
	logger.From(r.Context()).Info("user deleted",
		logger.Store(st.Name), logger.UserID(u.ID))
	w.WriteHeader(http.StatusNoContent)
}

// applyPayload copia los campos presentes del payload al usuario. Los
// atributos privilegiados solo se aplican con privileged=true.
func applyPayload(u *core.User, in *userPayload, privileged bool) {
	if in.Name != nil {
		user.SetName(u, *in.Name)
	}
	if in.MobileNumber != nil {
		user.SetMobile(u, *in.MobileNumber)
	}
	if in.EmailAddress != nil {
		user.SetEmail(u, *in.EmailAddress)
	}
	if in.BirthDate != nil {
		u.BirthDate = *in.BirthDate
	}
	if in.Gender != nil {
		u.Gender = *in.Gender
	}
	if !privileged {
		return
	}
	if in.Activated != nil && *in.Activated && !u.Activated {
		user.Activate(u, time.Now())
	}
	if in.MobileVerified != nil {
		u.MobileVerified = *in.MobileVerified
	}
	if in.EmailVerified != nil {
		u.EmailVerified = *in.EmailVerified
	}
}
