/*
Package twiml translates call script steps into TwiML, the XML call-control
markup understood by Twilio.

A Builder accumulates the verbs of one turn. Each command method validates its
step, appends markup and reports whether the step ends the turn (Terminal) and,
for gatherDigits, how the call resumes (Resume). Flush renders the document and
clears the buffer so nothing leaks into the next turn.
*/
package twiml
