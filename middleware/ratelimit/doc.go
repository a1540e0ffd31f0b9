// Package ratelimit fornece os adapters HTTP (net/http) do controle de cota e
// do limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: tipos e contratos (política, registro de contador, decisão), sem net/http
//   - application: classificador e motor de admissão (janela fixa), sem net/http
//   - infra: stores concretos (memória, Redis), decodificador JWT, estatísticas
//   - config: leitura do arquivo de políticas
//   - ratelimit (este pacote): extração de atributos, middlewares e respostas HTTP
//
// Fluxo no gateway:
//
//  1. Extrai Referer (header ou query), identidade do bearer token e IP remoto
//  2. Classifica em Referrer, LoggedIn ou Anonymous e busca a política do tipo
//  3. Consulta o contador da janela e decide; grava o novo contador se admitir
//  4. Se bloqueado responde 429 com {message, moreInfos, requestorType}
//  5. Se admitido, chama o próximo handler (ex: reverse proxy)
//
// As variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como RATE_POLICY_FILE, RATE_STORE e CONCURRENCY_MAX.
package ratelimit
