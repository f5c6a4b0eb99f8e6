package guard

import (
	"log"
	"net/http"

	"github.com/dynatos/pos-terminal/internal/domain"
)

const (
	LoginPath   = "/login"
	AdminHome   = "/admin"
	CashierHome = "/pos"
)

// Home is the landing route of a role. Unknown roles land on login.
func Home(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return AdminHome
	case domain.RoleCashier:
		return CashierHome
	default:
		return LoginPath
	}
}

type Decision struct {
	Allow    bool
	Redirect string
}

// Decide applies the routing rule for one navigation: no session goes to
// login, a role outside the allow-set goes to its own home, an unrecognized
// role goes to login.
func Decide(sess domain.Session, ok bool, allowed ...domain.Role) Decision {
	if !ok {
		return Decision{Redirect: LoginPath}
	}
	if !sess.Role.Valid() {
		return Decision{Redirect: LoginPath}
	}
	for _, role := range allowed {
		if sess.Role == role {
			return Decision{Allow: true}
		}
	}
	return Decision{Redirect: Home(sess.Role)}
}

// SessionSource is read on every guarded request.
type SessionSource interface {
	Current() (domain.Session, bool)
}

type Guard struct {
	sessions SessionSource
}

func New(sessions SessionSource) *Guard {
	return &Guard{sessions: sessions}
}

// Require admits requests whose session role is in roles and redirects the
// rest with 303 See Other.
func (g *Guard) Require(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := g.sessions.Current()
			d := Decide(sess, ok, roles...)
			if d.Allow {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
				return
			}
			log.Printf("guard: %s %s redirected to %s (role %q)", r.Method, r.URL.Path, d.Redirect, sess.Role)
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
		})
	}
}
