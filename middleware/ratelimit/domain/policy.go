package domain

import "time"

// Policy é uma regra de cota carregada na inicialização. Imutável.
type Policy struct {
	Kind          Kind
	WindowSeconds int
	MaxRequests   int
}

func (p Policy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Enabled é falso quando a entrada veio incompleta do arquivo (campos zerados).
func (p Policy) Enabled() bool {
	return p.Kind != KindUnknown && p.WindowSeconds > 0 && p.MaxRequests > 0
}

// PolicyTable é a lista ordenada de políticas. Não há mutação depois de
// construída, então pode ser compartilhada entre goroutines sem lock.
//
// Com entradas duplicadas para o mesmo Kind, vale a primeira.
type PolicyTable struct {
	entries    []Policy
	byKind     map[Kind]Policy
	duplicates []Policy
}

func NewPolicyTable(entries []Policy) *PolicyTable {
	t := &PolicyTable{
		entries: append([]Policy(nil), entries...),
		byKind:  make(map[Kind]Policy, len(entries)),
	}
	for _, p := range t.entries {
		if p.Kind == KindUnknown {
			continue
		}
		if _, ok := t.byKind[p.Kind]; ok {
			t.duplicates = append(t.duplicates, p)
			continue
		}
		t.byKind[p.Kind] = p
	}
	return t
}

// FindPolicy devolve a primeira política do kind. Entradas desabilitadas
// (janela ou máximo zerados) contam como ausentes.
func (t *PolicyTable) FindPolicy(kind Kind) (Policy, bool) {
	if t == nil {
		return Policy{}, false
	}
	p, ok := t.byKind[kind]
	if !ok || !p.Enabled() {
		return Policy{}, false
	}
	return p, true
}

func (t *PolicyTable) Policies() []Policy {
	if t == nil {
		return nil
	}
	return append([]Policy(nil), t.entries...)
}

// Duplicates lista as entradas ignoradas por repetirem um Kind.
func (t *PolicyTable) Duplicates() []Policy {
	if t == nil {
		return nil
	}
	return append([]Policy(nil), t.duplicates...)
}
