/*
Package doorman answers telephony webhooks by walking callers through scripted
call trees.

A script is an ordered list of steps (say, play, sendDigits, sendSms,
forwardCall, gatherDigits, hangUp) looked up by the inbound caller id. Every
webhook request advances the caller's session by one turn and returns the TwiML
to execute; gatherDigits pauses the call until the caller's keypad entry selects
the branch to continue with.

# Architecture

The core (pkg/domain, pkg/twiml, pkg/session) knows nothing about transports or
storage. Adapters plug into the ports in pkg/ports:

  - Session stores: memory, file, redis.
  - Script lookups: memory, file (YAML or JSON), redis.
  - Surfaces: the HTTP webhook, an MCP server and a local simulator.

# Usage

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app, err := doorman.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	log.Fatal(http.ListenAndServe(cfg.Addr(), app.Handler()))

A caller file looks like:

	callers:
	  "+14155551111":
	    - [say, {value: "Welcome."}]
	    - - gatherDigits
	      - "1": [[sendDigits, {value: "9"}]]
	        default: [[forwardCall, {value: "+14155552222"}]]
*/
package doorman
