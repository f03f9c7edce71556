package envelope

import (
	"reflect"
	"testing"
	"time"
)

func TestLongTermPayloadRoundtrip(t *testing.T) {
	p := LongTermPayload{
		UserID:   42,
		UserName: "nicole",
		Schemes:  []LongTermScheme{{Name: "Basic", LastUsed: time.Now().UTC().Round(time.Second)}},
		DeviceID: "device-abc",
	}

	encoded, err := EncodeLongTerm(p)
	if err != nil {
		t.Fatalf("EncodeLongTerm: %v", err)
	}
	decoded, err := DecodeLongTerm(encoded)
	if err != nil {
		t.Fatalf("DecodeLongTerm: %v", err)
	}
	if !reflect.DeepEqual(decoded, p) {
		t.Fatalf("decoded = %+v, want %+v", decoded, p)
	}
}

func TestEncodeLongTermOmitsEmptyFields(t *testing.T) {
	p := LongTermPayload{DeviceID: "device-abc"}
	encoded, err := EncodeLongTerm(p)
	if err != nil {
		t.Fatalf("EncodeLongTerm: %v", err)
	}
	if got, want := string(encoded), `{"deviceId":"device-abc"}`; got != want {
		t.Fatalf("encoded = %s, want %s", got, want)
	}
}

func TestDecodeLongTermRejectsGarbage(t *testing.T) {
	if _, err := DecodeLongTerm([]byte("not json")); err == nil {
		t.Fatal("DecodeLongTerm(garbage): want error, got nil")
	}
}
