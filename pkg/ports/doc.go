/*
Package ports defines the driven ports (interfaces) of the Doorman call engine.

These interfaces decouple call handling from external implementations, allowing
sessions to live in memory or Redis and scripts to come from files, Redis or any
other source.

# Key Interfaces

  - SessionStore: persists the CallState of calls in progress.
  - ScriptLookup: supplies the initial script for a caller.
  - DistributedLocker: serializes turns of one call across replicas.
*/
package ports
