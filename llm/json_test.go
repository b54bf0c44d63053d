package llm

import "testing"

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDecodeJSONPlain(t *testing.T) {
	var s sample
	if err := DecodeJSON(`{"name": "tokyo", "count": 2}`, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "tokyo" || s.Count != 2 {
		t.Errorf("decoded %+v", s)
	}
}

func TestDecodeJSONFenced(t *testing.T) {
	text := "```json\n{\"name\": \"tokyo\"}\n```"
	var s sample
	if err := DecodeJSON(text, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "tokyo" {
		t.Errorf("decoded %+v", s)
	}
}

func TestDecodeJSONSurroundingProse(t *testing.T) {
	text := "Here is the extracted data:\n{\"name\": \"tokyo\"}\nLet me know if you need more."
	var s sample
	if err := DecodeJSON(text, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "tokyo" {
		t.Errorf("decoded %+v", s)
	}
}

func TestDecodeJSONNoObject(t *testing.T) {
	var s sample
	if err := DecodeJSON("I couldn't find anything.", &s); err == nil {
		t.Error("expected error for prose without JSON")
	}
}

func TestDecodeJSONMalformed(t *testing.T) {
	var s sample
	if err := DecodeJSON(`{"name": }`, &s); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
