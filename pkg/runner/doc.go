/*
Package runner drives calls locally, without a telephony provider.

It plays the provider's role: every turn it calls the session registry the way a
webhook would, hands the TwiML to an IOHandler and reads the caller's digits back.

# Key Components

  - Runner: the turn loop for one call.
  - Simulate: a non-interactive run over a fixed list of digit entries.
  - TextHandler / JSONHandler: terminal and JSON-Lines front ends.
  - SanitizeDigits: the keypad input policy shared with the webhook.

# Usage

	r := runner.NewRunner(registry, lookup,
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx, domain.Call{ID: "local-1", From: "+14155551111"}); err != nil {
		log.Fatal(err)
	}
*/
package runner
