package infra

import (
	"fmt"
	"strings"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ClaimTypeName é o claim de nome usado por emissores WS-Federation/.NET.
const ClaimTypeName = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"

// JWTIdentityDecoder lê o nome do usuário de um JWT sem verificar assinatura
// nem validade: a identidade serve só para agrupar a cota, a autenticação é
// responsabilidade de outra camada.
type JWTIdentityDecoder struct {
	claims []string
}

var _ domain.IdentityDecoder = JWTIdentityDecoder{}

// NewJWTIdentityDecoder procura os claims na ordem dada. Sem argumentos usa
// "name" e ClaimTypeName.
func NewJWTIdentityDecoder(claims ...string) JWTIdentityDecoder {
	if len(claims) == 0 {
		claims = []string{"name", ClaimTypeName}
	}
	return JWTIdentityDecoder{claims: claims}
}

func (d JWTIdentityDecoder) Identity(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}

	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}

	for _, name := range d.claims {
		v, ok := tok.Get(name)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", nil
}
