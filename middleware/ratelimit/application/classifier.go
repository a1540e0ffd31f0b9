package application

import "quota-gateway/middleware/ratelimit/domain"

// AnonymousKeySeparator separa path e endereço remoto na chave anônima.
const AnonymousKeySeparator = "_"

// Classify transforma os atributos da requisição em (kind, chave, política).
//
// Prioridade: referer > identidade > anônimo (path + "_" + ip). String vazia
// conta como ausente. Sem política para o kind escolhido, HasPolicy=false.
func Classify(attrs domain.RequestAttributes, table *domain.PolicyTable) domain.Classification {
	var c domain.Classification

	switch {
	case attrs.Referrer != "":
		c.Kind = domain.KindReferrer
		c.Key = domain.Key(attrs.Referrer)
	case attrs.Identity != "":
		c.Kind = domain.KindLoggedIn
		c.Key = domain.Key(attrs.Identity)
	default:
		c.Kind = domain.KindAnonymous
		c.Key = domain.Key(attrs.Path + AnonymousKeySeparator + attrs.RemoteAddr)
	}

	c.Policy, c.HasPolicy = table.FindPolicy(c.Kind)
	return c
}
