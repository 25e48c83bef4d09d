package core

import "time"

// LoginMethod es un método de identificación habilitado en un store.
type LoginMethod string

const (
	LoginByEmail  LoginMethod = "email"
	LoginByMobile LoginMethod = "mobile"
	LoginByName   LoginMethod = "name"
)

// DefaultLoginMethods is the ordered set applied when a store declares none.
var DefaultLoginMethods = []LoginMethod{LoginByEmail, LoginByMobile, LoginByName}

// Scope declara un permiso del store con su descripción para el diálogo
// de autorización. El orden de declaración importa: el primero es el
// default scope del store.
type Scope struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Store es un tenant: un realm aislado con sus propios usuarios, clients
// y scopes.
type Store struct {
	ID          string
	Name        string // unique, URL-safe
	DefaultURL  string
	TemplateURL string
	Scopes      []Scope
	Secret      string // auto-generated once, never blank

	UserNameMinLength int
	UserNameMaxLength int
	UserNamePattern   string // regexp source; blank = default

	DefaultSenderEmail string
	LoginMethods       []LoginMethod
	GatewaySession     string // session token for the outbound messaging gateway

	CreatedAt time.Time
	UpdatedAt time.Time
}

// User es la identidad de un usuario final dentro de un store.
// Los campos normalizables (name, email, mobile) se guardan ya normalizados;
// "" significa ausente.
type User struct {
	ID      string
	StoreID string

	Name         string
	PasswordHash string // bcrypt o "legacy:<sha1>", opaco

	MobileNumber   string
	MobileVerified bool
	EmailAddress   string
	EmailVerified  bool

	BirthDate string // YYYY-MM-DD, "" = unset
	Gender    string

	Activated   bool
	ActivatedAt *time.Time
	LoggedIn    bool
	Deleted     bool
	DeletedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reporta si el usuario no está borrado.
func (u *User) Active() bool { return !u.Deleted }

// NonceEndpoint indica a dónde se envió el código de verificación.
type NonceEndpoint string

const (
	EndpointMobile NonceEndpoint = "mobile"
	EndpointEmail  NonceEndpoint = "email"
)

// NonceContext indica qué flujo disparó la verificación.
type NonceContext string

const (
	ContextSignup   NonceContext = "signup"
	ContextRecovery NonceContext = "recovery"
	ContextChange   NonceContext = "change"
)

// Nonce es un código de verificación de un solo uso, ligado a un usuario
// y un endpoint de entrega.
type Nonce struct {
	ID      string
	StoreID string
	UserID  string

	Key   string // identification the code was sent to
	Value string // the code itself
	URL   string // return URL to resume after verification

	ExpiresAt *time.Time
	Endpoint  NonceEndpoint
	Context   NonceContext

	DeliveryStatusKey string // external message tracking id

	CreatedAt time.Time
}

// Client es una aplicación OAuth registrada en un store.
type Client struct {
	ID      string
	StoreID string

	Title            string
	APIKey           string // unique, auto-generated
	Secret           string // auto-generated
	OAuthRedirectURI string

	SkipsAuthorizationDialog bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Authorization es un grant OAuth: el código intercambiable por un token.
type Authorization struct {
	ID       string
	UserID   string
	ClientID string

	Code          string
	CodeExpiresAt time.Time
	RedirectURL   string // snapshot of the client's URI at grant time
	Scopes        []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CodeExpired reporta si el código ya no es intercambiable.
func (a *Authorization) CodeExpired(now time.Time) bool {
	return !a.CodeExpiresAt.IsZero() && !a.CodeExpiresAt.After(now)
}

// Token es un par access/refresh emitido a partir de una Authorization.
type Token struct {
	ID       string
	UserID   string
	ClientID string

	AuthorizationCode string // link to the issuing code, not FK-enforced
	AccessToken       string
	RefreshToken      string
	Scopes            []string

	ExpiresAt     *time.Time
	InvalidatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reporta si el token venció.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
