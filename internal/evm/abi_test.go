package evm

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
)

func TestSelector_KnownValues(t *testing.T) {
	cases := map[string]string{
		"ownerOf(uint256)":   "6352211e",
		"tokenURI(uint256)":  "c87b56dd",
		"mint()":             "1249c58b",
		"balanceOf(address)": "70a08231",
	}
	for sig, want := range cases {
		sel := Selector(sig)
		if got := hex.EncodeToString(sel[:]); got != want {
			t.Errorf("%s: expected %s, got %s", sig, want, got)
		}
	}
}

func TestEventTopic_Transfer(t *testing.T) {
	want := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	if got := EventTopic("Transfer(address,address,uint256)"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestEncodeCall(t *testing.T) {
	data := EncodeCall(Selector("ownerOf(uint256)"), big.NewInt(5))
	if len(data) != 36 {
		t.Fatalf("expected 36 bytes, got %d", len(data))
	}
	if data[35] != 5 {
		t.Errorf("expected last byte 5, got %d", data[35])
	}
	for i := 4; i < 35; i++ {
		if data[i] != 0 {
			t.Fatalf("expected zero padding at %d", i)
		}
	}
}

func TestDecodeAddress(t *testing.T) {
	word, err := EncodeAddress("0x00000000000000000000000000000000000000AB")
	if err != nil {
		t.Fatalf("EncodeAddress: %v", err)
	}

	addr, err := DecodeAddress(word)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if addr != "0x00000000000000000000000000000000000000ab" {
		t.Errorf("unexpected address %s", addr)
	}

	if _, err := DecodeAddress(word[:10]); !errors.Is(err, ErrShortData) {
		t.Errorf("expected ErrShortData, got %v", err)
	}

	for _, bad := range []string{"0x1234", "00000000000000000000000000000000000000ab", "0x00000000000000000000000000000000000000zz"} {
		if _, err := EncodeAddress(bad); err == nil {
			t.Errorf("EncodeAddress(%q): expected error", bad)
		}
	}
}

func TestEncodeString_Layout(t *testing.T) {
	enc := EncodeString("hello")
	if len(enc) != 96 {
		t.Fatalf("expected 96 bytes, got %d", len(enc))
	}
	if enc[31] != 32 || enc[63] != 5 {
		t.Errorf("unexpected offset/length words %x", enc[:64])
	}
	if string(enc[64:69]) != "hello" {
		t.Errorf("unexpected payload %q", enc[64:69])
	}
}

func TestEncodeDecodeString(t *testing.T) {
	cases := []string{"", "a", "data:application/json;base64,eyJpbWFnZSI6IiJ9", string(make([]byte, 64))}
	for _, s := range cases {
		got, err := DecodeString(EncodeString(s))
		if err != nil {
			t.Fatalf("DecodeString(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("expected %q, got %q", s, got)
		}
	}
}

func TestDecodeString_Malformed(t *testing.T) {
	// offset points past the data
	bad := EncodeUint256(big.NewInt(1024))
	if _, err := DecodeString(bad); !errors.Is(err, ErrShortData) {
		t.Errorf("expected ErrShortData for out-of-range offset, got %v", err)
	}

	// length larger than remaining data
	enc := EncodeString("hello")
	truncated := enc[:64+2]
	if _, err := DecodeString(truncated); !errors.Is(err, ErrShortData) {
		t.Errorf("expected ErrShortData, got %v", err)
	}
}

func TestDecodeUint256(t *testing.T) {
	v, err := DecodeUint256(EncodeUint256(big.NewInt(42)))
	if err != nil {
		t.Fatalf("DecodeUint256: %v", err)
	}
	if v.Int64() != 42 {
		t.Errorf("expected 42, got %s", v)
	}
}

func TestTopicToAddress(t *testing.T) {
	topic := "0x00000000000000000000000052908400098527886e0f7030069857d2e4169ee7"
	addr, err := TopicToAddress(topic)
	if err != nil {
		t.Fatalf("TopicToAddress: %v", err)
	}
	if addr != "0x52908400098527886e0f7030069857d2e4169ee7" {
		t.Errorf("unexpected address %s", addr)
	}
	if _, err := TopicToAddress("0x1234"); err == nil {
		t.Error("expected error for short topic")
	}
}
