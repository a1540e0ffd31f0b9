package main

import (
	"fmt"
	"net/http"
	"os"

	"quota-gateway/middleware/obs"
)

// Upstream simples para validar o gateway à mão: não tem limite nenhum, então
// todo 429 observado vem do gateway.
func main() {
	logger := obs.SetupLogger(os.Getenv("LOG_LEVEL"))

	mux := http.NewServeMux()
	mux.HandleFunc("/showTela", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Tela do Sistema</h1><p>Requisição recebida com sucesso!</p>")
		logger.Info().
			Str("referer", r.Header.Get("Referer")).
			Str("xff", r.Header.Get("X-Forwarded-For")).
			Msg("alguém acessou o endpoint /showTela")
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	logger.Info().Str("addr", addr).Msg("servidor rodando")
	if err := http.ListenAndServe(addr, obs.AccessLog(logger)(mux)); err != nil {
		logger.Fatal().Err(err).Msg("erro ao subir o servidor")
	}
}
