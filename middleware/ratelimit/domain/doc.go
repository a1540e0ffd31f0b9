// Package domain define contratos e tipos de domínio para o controle de cota
// (janela fixa) e para o limite de concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas de
// armazenamento. Políticas, registros de contador e decisões vivem aqui para
// que o classificador e o motor de admissão possam ser testados de forma pura.
package domain
