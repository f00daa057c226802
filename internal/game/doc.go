// Package game holds the authoritative state for one Human Hunter session:
// players, chat log, votes, phase, and round. All mutation goes through
// guarded methods on Session so that concurrent writers (human actions
// arriving over a transport, agent turns finishing seconds after they were
// scheduled, phase timers) cannot corrupt state. The central idiom is the
// phase guard: writers declare the phase they believe the session is in,
// and the write is refused if the phase has moved on.
package game
