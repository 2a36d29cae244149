package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

// ErrNoIdentity возвращается, если в токене нет идентификатора пользователя.
var ErrNoIdentity = errors.New("token carries no user identity")

// IdentityFromToken извлекает сведения о пользователе из claims токена без проверки подписи:
// подпись проверяет удалённый API.
func IdentityFromToken(token string) (*model.Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	identity := &model.Identity{
		ID:    firstString(claims, "userId", "id", "_id", "sub"),
		Email: firstString(claims, "email"),
		Role:  model.Role(firstString(claims, "role")),
		Name:  firstString(claims, "name"),
	}
	if identity.ID == "" && identity.Email == "" {
		return nil, ErrNoIdentity
	}
	if identity.Role == "" {
		identity.Role = model.RoleUser
	}
	return identity, nil
}

func firstString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
