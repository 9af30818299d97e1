package greenapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecofinds/greencore/internal/apperr"
	"github.com/ecofinds/greencore/internal/models"
)

type contextKey int

const identityKey contextKey = iota

// authMiddleware resolves "Authorization: Bearer <token>" into an
// Identity. Missing or unknown tokens are rejected before the handler
// runs; ownership checks stay in the service layer.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, apperr.Unauthorized("authentication required"))
			return
		}

		u, err := a.users.GetUserByToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		if u == nil {
			writeError(w, apperr.Unauthorized("invalid token"))
			return
		}

		ident := &models.Identity{UserID: u.ID, Role: u.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

func identityFromContext(ctx context.Context) *models.Identity {
	ident, _ := ctx.Value(identityKey).(*models.Identity)
	return ident
}
