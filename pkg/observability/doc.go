/*
Package observability exports call metrics in the Prometheus format.

Metrics are fed by domain.LifecycleHooks, so the session layer stays unaware of
Prometheus, and by the webhook, which records the outcome and duration of every turn.
*/
package observability
