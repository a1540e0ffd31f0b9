package domain

import "time"

// NextWindow aplica a transição da janela fixa sobre o registro lido do store.
//
//   - rec nil (chave nunca vista): admite, {now, 1}
//   - now >= WindowStart+janela: admite e reinicia a janela, {now, 1}
//   - dentro da janela e Count < MaxRequests: admite, {WindowStart, Count+1}
//   - dentro da janela e Count >= MaxRequests: bloqueia, registro inalterado
//
// A janela não desliza: uma rajada na virada pode admitir até 2*MaxRequests.
func NextWindow(rec *CounterRecord, p Policy, now time.Time) (CounterRecord, bool, Reason) {
	if rec == nil {
		return CounterRecord{WindowStart: now, Count: 1}, true, ReasonAdmitted
	}
	if !now.Before(rec.WindowStart.Add(p.Window())) {
		return CounterRecord{WindowStart: now, Count: 1}, true, ReasonWindowReset
	}
	if rec.Count < p.MaxRequests {
		return CounterRecord{WindowStart: rec.WindowStart, Count: rec.Count + 1}, true, ReasonAdmitted
	}
	return *rec, false, ReasonQuotaExceeded
}

// RetryAfter arredonda para cima, em segundos, o tempo até a janela expirar.
func RetryAfter(rec CounterRecord, p Policy, now time.Time) time.Duration {
	left := rec.WindowStart.Add(p.Window()).Sub(now)
	if left <= 0 {
		return 0
	}
	secs := left / time.Second
	if left%time.Second != 0 {
		secs++
	}
	return secs * time.Second
}
