// Package twiml renders telephony response markup for voice webhooks.
package twiml

import (
	"encoding/xml"
)

// Response is the root element of a voice webhook reply. Verbs execute in
// document order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Record captures caller audio and posts the recording to Action.
type Record struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	PlayBeep  bool     `xml:"playBeep,attr,omitempty"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Add appends verbs to the response and returns it for chaining.
func (r *Response) Add(verbs ...any) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// Render serializes the response with the XML declaration telephony
// providers expect.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// MarshalXML writes the wrapper element and each verb in order. The generic
// Verbs slice needs explicit encoding since encoding/xml does not descend
// into []any fields.
func (r *Response) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "Response"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, verb := range r.Verbs {
		if err := e.Encode(verb); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}
