package queue

import (
	"encoding/json"
	"testing"
)

type deliverNote struct {
	Symbol string `json:"symbol"`
	Level  int    `json:"level"`
}

func TestParsePayloadPassthrough(t *testing.T) {
	want := &deliverNote{Symbol: "BTCUSDT", Level: 2}

	got, err := ParsePayload[deliverNote](want)
	if err != nil {
		t.Fatalf("pointer payload: %v", err)
	}
	if got != want {
		t.Fatal("pointer payload should be returned as is")
	}

	got, err = ParsePayload[deliverNote](deliverNote{Symbol: "ETHUSDT"})
	if err != nil {
		t.Fatalf("value payload: %v", err)
	}
	if got.Symbol != "ETHUSDT" {
		t.Fatalf("got %+v", got)
	}
}

func TestParsePayloadFromRawJSON(t *testing.T) {
	raw := json.RawMessage(`{"symbol":"BTCUSDT","level":3}`)
	got, err := ParsePayload[deliverNote](raw)
	if err != nil {
		t.Fatalf("raw payload: %v", err)
	}
	if got.Symbol != "BTCUSDT" || got.Level != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestParsePayloadFromGenericMap(t *testing.T) {
	m := map[string]interface{}{"symbol": "SOLUSDT", "level": 1}
	got, err := ParsePayload[deliverNote](m)
	if err != nil {
		t.Fatalf("map payload: %v", err)
	}
	if got.Symbol != "SOLUSDT" || got.Level != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestParsePayloadRejectsUnknownTypes(t *testing.T) {
	if _, err := ParsePayload[deliverNote](42); err == nil {
		t.Fatal("expected error for int payload")
	}
}
