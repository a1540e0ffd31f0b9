// Package config lê o arquivo de políticas de cota (YAML ou JSON).
//
// Formato:
//
//	rateLimitConfig:
//	  - type: Anonymous
//	    timeWindowSeconds: 10
//	    maxRequests: 2
//
// As chaves não diferenciam maiúsculas e "timeWindow" é aceito como sinônimo
// de "timeWindowSeconds". Entrada ou campo malformado vira ""/0 e gera aviso;
// nunca derruba a inicialização.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const sectionKey = "ratelimitconfig"

// Parse interpreta o conteúdo do arquivo. Sem a seção rateLimitConfig devolve
// tabela nil (nenhum limite). O erro só aparece para documento ilegível.
func Parse(data []byte) (*domain.PolicyTable, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, fmt.Errorf("parse policy file: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("parse policy file: top level must be a mapping, got %s", nodeKind(doc))
	}

	section := lookup(doc, sectionKey)
	if section == nil {
		return nil, nil, nil
	}

	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if section.Kind != yaml.SequenceNode {
		warnf("rateLimitConfig: expected a list, got %s", nodeKind(section))
		return domain.NewPolicyTable(nil), warnings, nil
	}

	policies := make([]domain.Policy, 0, len(section.Content))
	for i, item := range section.Content {
		policies = append(policies, parseEntry(i, item, warnf))
	}
	return domain.NewPolicyTable(policies), warnings, nil
}

func parseEntry(i int, item *yaml.Node, warnf func(string, ...any)) domain.Policy {
	var p domain.Policy
	if item.Kind != yaml.MappingNode {
		warnf("rateLimitConfig[%d]: expected a mapping, got %s", i, nodeKind(item))
		return p
	}

	if n := lookup(item, "type"); n != nil {
		raw := strings.TrimSpace(n.Value)
		p.Kind = domain.ParseKind(raw)
		if p.Kind == domain.KindUnknown && raw != "" {
			warnf("rateLimitConfig[%d].type: unknown kind %q", i, raw)
		}
	}

	window := lookup(item, "timewindowseconds")
	if window == nil {
		window = lookup(item, "timewindow")
	}
	p.WindowSeconds = intField(i, "timeWindowSeconds", window, warnf)
	p.MaxRequests = intField(i, "maxRequests", lookup(item, "maxrequests"), warnf)
	return p
}

func intField(i int, name string, n *yaml.Node, warnf func(string, ...any)) int {
	if n == nil {
		return 0
	}
	if n.Kind != yaml.ScalarNode {
		warnf("rateLimitConfig[%d].%s: expected a number, got %s", i, name, nodeKind(n))
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.Value))
	if err != nil {
		warnf("rateLimitConfig[%d].%s: %q is not an integer", i, name, n.Value)
		return 0
	}
	return v
}

// lookup procura a chave sem diferenciar maiúsculas.
func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if strings.EqualFold(m.Content[i].Value, key) {
			return m.Content[i+1]
		}
	}
	return nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// Load lê o arquivo e registra no log os avisos, as entradas desabilitadas e
// as duplicadas. path vazio = sem configuração.
func Load(path string, logger zerolog.Logger) (*domain.PolicyTable, error) {
	if strings.TrimSpace(path) == "" {
		logger.Info().Msg("no policy file configured, quota checks disabled")
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	table, warnings, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn().Str("file", path).Msg(w)
	}
	if table == nil {
		logger.Info().Str("file", path).Msg("policy file has no rateLimitConfig section, quota checks disabled")
		return nil, nil
	}

	for _, p := range table.Duplicates() {
		logger.Warn().Str("kind", string(p.Kind)).Msg("duplicate policy ignored, first entry wins")
	}
	for _, p := range table.Policies() {
		ev := logger.Info()
		if !p.Enabled() {
			ev = logger.Warn()
		}
		ev.Str("kind", string(p.Kind)).
			Int("window_seconds", p.WindowSeconds).
			Int("max_requests", p.MaxRequests).
			Bool("enabled", p.Enabled()).
			Msg("policy loaded")
	}
	return table, nil
}
