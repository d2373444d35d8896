package utils

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	for _, id := range []uint{1, 42, 4294967295} {
		decoded, ok := DecodeCursor(EncodeCursor(id))
		if !ok {
			t.Fatalf("cursor for %d did not decode", id)
		}
		if decoded != id {
			t.Fatalf("expected %d, got %d", id, decoded)
		}
	}
}

func TestMalformedCursor(t *testing.T) {
	for _, cursor := range []string{"", "not-base64!!", "aGVsbG8="} {
		if _, ok := DecodeCursor(cursor); ok {
			t.Fatalf("expected cursor %q to be rejected", cursor)
		}
	}
}
