package swap

import (
	"bytes"
	"testing"
	"testing/quick"
)

func TestSecretHashRoundTrip(t *testing.T) {
	f := func(b [SecretSize]byte) bool {
		s := Secret(b)
		h := s.Hash()
		return s.Matches(h)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestSecretFromHex(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid all-zero", "00" + repeat("00", SecretSize-1), false},
		{"valid mixed", repeat("ab", SecretSize), false},
		{"too short", "ab", true},
		{"not hex", "zz" + repeat("00", SecretSize-1), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := SecretFromHex(c.in)
			if (err != nil) != c.wantErr {
				t.Fatalf("SecretFromHex(%q) error = %v, wantErr %v",
					c.in, err, c.wantErr)
			}
		})
	}
}

func TestAllZeroSecretRedeemsIffHashMatches(t *testing.T) {
	var zero Secret
	h := zero.Hash()

	if !zero.Matches(h) {
		t.Fatal("all-zero secret must match its own hash")
	}

	var other SecretHash
	other[0] = 0xff
	if zero.Matches(other) {
		t.Fatal("all-zero secret must not match an unrelated hash")
	}
}

func repeat(s string, n int) string {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.WriteString(s)
	}
	return buf.String()
}
