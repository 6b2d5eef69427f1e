package wayland

import (
	"bytes"
	"testing"
)

func TestFixedConversion(t *testing.T) {
	tests := []struct {
		name     string
		float    float64
		expected float64
	}{
		{"zero", 0.0, 0.0},
		{"positive integer", 42.0, 42.0},
		{"negative integer", -42.0, -42.0},
		{"positive fraction", 3.5, 3.5},
		{"negative fraction", -3.5, -3.5},
		{"small positive", 0.125, 0.125},
		{"small negative", -0.125, -0.125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixed := FixedFromFloat(tt.float)
			got := fixed.Float()

			const epsilon = 0.004 // 24.8 fixed has ~0.004 precision
			if diff := got - tt.expected; diff < -epsilon || diff > epsilon {
				t.Errorf("FixedFromFloat(%v).Float() = %v, want %v", tt.float, got, tt.expected)
			}
		})
	}
}

func TestEncodeDecodeInt(t *testing.T) {
	enc := NewEncoder(16)
	enc.PutInt(0x12345678)
	enc.PutInt(-1)

	dec := NewDecoder(enc.Bytes(), nil)
	v, err := dec.Int()
	if err != nil || v != 0x12345678 {
		t.Fatalf("Int() = %d, %v, want 0x12345678, nil", v, err)
	}
	v, err = dec.Int()
	if err != nil || v != -1 {
		t.Fatalf("Int() = %d, %v, want -1, nil", v, err)
	}
}

func TestStringPadding(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		wantBytes int // length prefix + payload + NUL, padded to 4
	}{
		{"empty", "", 8},      // len=1 (just the NUL), pad 3 -> 4+4
		{"three", "abc", 8},   // len=4 (incl NUL), pad 0 -> 4+4
		{"four", "abcd", 12},  // len=5 (incl NUL), pad 3 -> 4+8
		{"seven", "abcdefg", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder(32)
			enc.PutString(tt.str)
			if got := len(enc.Bytes()); got != tt.wantBytes {
				t.Errorf("encoded length = %d, want %d", got, tt.wantBytes)
			}
			if got%4 != 0 {
				t.Errorf("encoded length %d is not 4-byte aligned", got)
			}

			dec := NewDecoder(enc.Bytes(), nil)
			s, err := dec.String()
			if err != nil {
				t.Fatalf("String() error: %v", err)
			}
			if s != tt.str {
				t.Errorf("String() = %q, want %q", s, tt.str)
			}
			if dec.Offset() != tt.wantBytes {
				t.Errorf("Offset() = %d, want %d", dec.Offset(), tt.wantBytes)
			}
		})
	}
}

func TestArrayRoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	enc := NewEncoder(16)
	enc.PutArray(data)

	dec := NewDecoder(enc.Bytes(), nil)
	got, err := dec.Array()
	if err != nil {
		t.Fatalf("Array() error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Array() = %v, want %v", got, data)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, headerSize)
	encodeHeader(buf, ID(42), Opcode(3), 24)

	id, opcode, size := decodeHeader(buf)
	if id != 42 || opcode != 3 || size != 24 {
		t.Errorf("decodeHeader = (%d, %d, %d), want (42, 3, 24)", id, opcode, size)
	}
}

func TestDecoderShortRead(t *testing.T) {
	dec := NewDecoder([]byte{1, 2, 3}, nil)
	if _, err := dec.Uint(); err == nil {
		t.Fatal("Uint() on 3 bytes should have failed as a short read")
	}
}

func TestEncodeFrameOversize(t *testing.T) {
	enc := NewEncoder(0)
	enc.buf = make([]byte, maxMessageSize)
	if _, err := enc.EncodeFrame(1, 0); err == nil {
		t.Fatal("EncodeFrame should reject a frame over maxMessageSize")
	}
}

func TestFDQueueFIFO(t *testing.T) {
	dec := NewDecoder(nil, []int{10, 11, 12})
	for _, want := range []int{10, 11, 12} {
		got, err := dec.FD()
		if err != nil {
			t.Fatalf("FD() error: %v", err)
		}
		if got != want {
			t.Errorf("FD() = %d, want %d", got, want)
		}
	}
	if _, err := dec.FD(); err == nil {
		t.Fatal("FD() past the end of the queue should error")
	}
}
