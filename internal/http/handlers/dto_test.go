package handlers

import (
	"encoding/json"
	"errors"
	"testing"

	"escrow/internal/domain"
)

func TestLamportsDecoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Lamports
		wantErr bool
	}{
		{in: `"18446744073709551615"`, want: Lamports(^uint64(0))},
		{in: `42`, want: 42},
		{in: `"7"`, want: 7},
		{in: `-1`, wantErr: true},
		{in: `1.5`, wantErr: true},
		{in: `1e3`, wantErr: true},
		{in: `"abc"`, wantErr: true},
		{in: `null`, wantErr: true},
	}
	for _, tc := range tests {
		var got Lamports
		err := json.Unmarshal([]byte(tc.in), &got)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrInvalidAmount) {
				t.Fatalf("%s: err = %v, want ErrInvalidAmount", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %d, %v", tc.in, got, err)
		}
	}
}

func TestLamportsEncodeAsString(t *testing.T) {
	raw, err := json.Marshal(map[string]Lamports{"amount": 9007199254740993})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"amount":"9007199254740993"}` {
		t.Fatalf("got %s", raw)
	}
}
