/*
Package session implements the call state machine and the registry of calls in
progress.

A Session advances one call per webhook turn: it renders steps through the TwiML
builder until a terminal step, pausing on gatherDigits and completing once the
script is exhausted. The Registry bridges the stateless webhook to those
sessions, persisting each CallState through a ports.SessionStore and serializing
turns of the same call with per-call locks (optionally distributed).
*/
package session
