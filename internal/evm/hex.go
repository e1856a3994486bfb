package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EncodeHex encodes bytes as 0x-prefixed hex.
func EncodeHex(b []byte) string {
	return hexutil.Encode(b)
}

// The decoders below are looser than hexutil: providers and log payloads
// are seen with leading zeros, odd lengths and a missing prefix.

// DecodeHex decodes 0x-prefixed (or bare) hex. Odd-length input is left-padded.
func DecodeHex(s string) ([]byte, error) {
	s = strip0x(s)
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// ParseHexUint64 parses a 0x-prefixed hex quantity.
func ParseHexUint64(s string) (uint64, error) {
	s = strip0x(s)
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex quantity %q: %w", s, err)
	}
	return v, nil
}

// ParseHexBig parses a 0x-prefixed hex quantity of arbitrary size.
func ParseHexBig(s string) (*big.Int, error) {
	s = strip0x(s)
	if s == "" {
		return nil, fmt.Errorf("empty hex quantity")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("parse hex quantity %q", s)
	}
	return v, nil
}

// EncodeUint64 encodes a quantity as 0x-prefixed hex without leading zeros.
func EncodeUint64(v uint64) string {
	return hexutil.EncodeUint64(v)
}

// EncodeBig encodes a non-negative big integer as a hex quantity.
func EncodeBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return hexutil.EncodeBig(v)
}

// IsHexAddress reports whether s is a 20-byte 0x-prefixed hex address.
func IsHexAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	return common.IsHexAddress(s)
}

// FormatEther renders a wei amount in ether with up to 18 decimals, trailing zeros trimmed.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	whole, frac := new(big.Int).QuoRem(wei, unit, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := frac.String()
	fracStr = strings.Repeat("0", 18-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")
	return whole.String() + "." + fracStr
}

func strip0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
