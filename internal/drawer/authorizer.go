package drawer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dynatos/pos-terminal/internal/api"
	"github.com/dynatos/pos-terminal/internal/domain"
)

type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (api.LoginResult, error)
}

// Authorizer confirms that a privileged operator approves a drawer operation,
// whoever is signed in on the terminal.
type Authorizer struct {
	auth Authenticator
}

func NewAuthorizer(auth Authenticator) *Authorizer {
	return &Authorizer{auth: auth}
}

// VerifyAdmin accepts the credentials only when the backend signs them in with
// role ADMIN. Any rejection or failure of the check is ErrInvalidAdminCredentials;
// transport and backend failures keep their cause in the message only, so they
// are never mistaken for a rejection of the operator's own session.
func (a *Authorizer) VerifyAdmin(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return domain.Session{}, ErrInvalidAdminCredentials
	}

	res, err := a.auth.Login(ctx, creds)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return domain.Session{}, ErrInvalidAdminCredentials
		}
		if errors.Is(err, api.ErrUnexpectedShape) {
			return domain.Session{}, ErrInvalidAdminCredentials
		}
		log.Printf("admin check for %q failed: %v", creds.Username, err)
		return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidAdminCredentials, err)
	}

	if res.Session.Role != domain.RoleAdmin {
		log.Printf("admin check rejected user %q with role %s", creds.Username, res.Session.Role)
		return domain.Session{}, ErrInvalidAdminCredentials
	}
	return res.Session, nil
}
