// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: contador de janela fixa em memória, com expiração e janitor
//   - RedisStore: contador compartilhado em Redis (hash + PEXPIRE, Lua no modo atômico)
//   - JWTIdentityDecoder: extrai a identidade de um token bearer
//   - MemoryStatsStore/RedisStatsStore/PrometheusStats: estatísticas das decisões
//   - SlotPool: semáforo simples para limite de concorrência
package infra
