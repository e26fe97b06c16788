/*
Package domain contains the core data model of the Doorman call engine.

It defines the call script vocabulary (Commands, Steps and Scripts), the value
that resumes a paused call (Resolver), and the serializable snapshot of a call in
progress (CallState). The package holds no I/O: persistence, transport and markup
rendering live in adapters that depend on it.

# Key Entities

  - Step: one instruction of a call script, tagged by its Command.
  - Script: an ordered list of Steps. Scripts are trees, gatherDigits branches are Scripts.
  - Resolver: selects the next Script from the digits a caller entered.
  - CallState: position, status and pending Resolver of one call.
*/
package domain
