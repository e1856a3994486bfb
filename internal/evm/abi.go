package evm

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// wordSize is the ABI slot size in bytes.
const wordSize = 32

// ErrShortData is returned when return data is shorter than its ABI layout requires.
var ErrShortData = errors.New("abi: return data too short")

var stringArgs = func() abi.Arguments {
	t, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

// Selector returns the 4-byte function selector for a canonical signature,
// e.g. "ownerOf(uint256)".
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// EventTopic returns the topic hash for an event signature, 0x-prefixed.
func EventTopic(signature string) string {
	return crypto.Keccak256Hash([]byte(signature)).Hex()
}

// EncodeCall builds calldata for a function taking only uint256 arguments.
func EncodeCall(sel [4]byte, args ...*big.Int) []byte {
	data := make([]byte, 4, 4+wordSize*len(args))
	copy(data, sel[:])
	for _, arg := range args {
		data = append(data, encodeUint256(arg)...)
	}
	return data
}

func encodeUint256(v *big.Int) []byte {
	if v == nil {
		return make([]byte, wordSize)
	}
	return common.BigToHash(v).Bytes()
}

// DecodeUint256 decodes a single uint256 return value.
func DecodeUint256(data []byte) (*big.Int, error) {
	if len(data) < wordSize {
		return nil, ErrShortData
	}
	return new(big.Int).SetBytes(data[:wordSize]), nil
}

// DecodeAddress decodes a single address return value as lower-case 0x hex.
func DecodeAddress(data []byte) (string, error) {
	if len(data) < wordSize {
		return "", ErrShortData
	}
	return strings.ToLower(common.BytesToAddress(data[12:wordSize]).Hex()), nil
}

// DecodeString decodes a single dynamic string return value.
func DecodeString(data []byte) (string, error) {
	if len(data) < wordSize {
		return "", ErrShortData
	}
	out, err := stringArgs.Unpack(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrShortData, err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("abi: unexpected string value %T", out[0])
	}
	return s, nil
}

// EncodeString ABI-encodes a string as a single return value, the inverse of DecodeString.
func EncodeString(s string) []byte {
	out, err := stringArgs.Pack(s)
	if err != nil {
		panic(err)
	}
	return out
}

// EncodeAddress ABI-encodes an address as a single return value, the inverse of DecodeAddress.
func EncodeAddress(addr string) ([]byte, error) {
	if !IsHexAddress(addr) {
		return nil, fmt.Errorf("abi: invalid address %q", addr)
	}
	return common.LeftPadBytes(common.HexToAddress(addr).Bytes(), wordSize), nil
}

// EncodeUint256 ABI-encodes a single uint256 return value.
func EncodeUint256(v *big.Int) []byte {
	return encodeUint256(v)
}

// TopicToAddress extracts the address from an indexed address topic.
func TopicToAddress(topic string) (string, error) {
	raw, err := DecodeHex(topic)
	if err != nil {
		return "", err
	}
	return DecodeAddress(raw)
}
