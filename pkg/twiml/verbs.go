package twiml

import "encoding/xml"

// Response is the root element of a TwiML document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	Action   string   `xml:"action,attr"`
	CallerID string   `xml:"callerId,attr"`
	Method   string   `xml:"method,attr"`
	Timeout  int      `xml:"timeout,attr"`
	Number   string   `xml:",chardata"`
}

type Sms struct {
	XMLName xml.Name `xml:"Sms"`
	From    string   `xml:"from,attr"`
	To      string   `xml:"to,attr"`
	Body    string   `xml:",chardata"`
}

type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr"`
	Voice    string   `xml:"voice,attr"`
	Text     string   `xml:",chardata"`
}

// Play covers both uses of the element: DTMF playback when Digits is set,
// audio playback of URL otherwise.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	Digits  string   `xml:"digits,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	Action    string   `xml:"action,attr"`
	Method    string   `xml:"method,attr"`
	NumDigits int      `xml:"numDigits,attr"`
	Timeout   int      `xml:"timeout,attr"`
}

type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}
