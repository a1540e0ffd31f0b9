// Package application contém os casos de uso do controle de cota e do limite
// de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Classify(attrs, tabela) escolhe a política e a chave;
// Service.Decide(ctx, attrs) lê o contador, decide admitir/bloquear e grava o
// novo estado.
package application
