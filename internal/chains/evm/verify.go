package evm

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/SrJuanF/UnitPoints-System/internal/chains"
)

// CBOR metadata map header followed by the "ipfs" key (solc >= 0.6.0)
var metadataMarker = []byte{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73}

// Library placeholder pattern: __$<34 hex chars>$__
var libraryPlaceholder = regexp.MustCompile(`__\$[a-f0-9]{34}\$__`)

// StripMetadata removes the CBOR metadata solc appends to bytecode.
// The last two bytes hold the big-endian length of the CBOR section.
func StripMetadata(bytecode []byte) []byte {
	if n := len(bytecode); n > 2 {
		size := int(binary.BigEndian.Uint16(bytecode[n-2:]))
		start := n - 2 - size
		if size > 0 && start >= 0 && bytecode[start]&0xf0 == 0xa0 {
			return bytecode[:start]
		}
	}
	// Truncated or hand-edited code: fall back to the marker
	if idx := bytes.LastIndex(bytecode, metadataMarker); idx != -1 {
		return bytecode[:idx]
	}
	return bytecode
}

// DecodeHex decodes 0x-prefixed hex bytecode. Raw bytes are returned unchanged.
func DecodeHex(code []byte) []byte {
	s := strings.TrimSpace(string(code))
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return code
	}
	decoded, err := hex.DecodeString(s[2:])
	if err != nil {
		return code
	}
	return decoded
}

// CompareBytecode compares deployed runtime code to the runtime code in an artifact
func CompareBytecode(deployed, artifact []byte, libraries map[string]string) *chains.VerifyResult {
	artifact = DecodeHex(artifact)

	if len(libraries) > 0 {
		artifact = substituteLibraries(artifact, libraries)
	}

	if len(deployed) == 0 {
		return &chains.VerifyResult{
			Match:     false,
			MatchType: chains.MatchNone,
			Message:   "No code deployed at address",
		}
	}

	if bytes.Equal(deployed, artifact) {
		return &chains.VerifyResult{
			Match:     true,
			MatchType: chains.MatchFull,
			Message:   "Bytecode matches exactly including metadata",
		}
	}

	if bytes.Equal(StripMetadata(deployed), StripMetadata(artifact)) {
		return &chains.VerifyResult{
			Match:     true,
			MatchType: chains.MatchPartial,
			Message:   "Executable code matches, metadata differs",
		}
	}

	return &chains.VerifyResult{
		Match:     false,
		MatchType: chains.MatchNone,
		Message:   "Bytecode does not match",
	}
}

// substituteLibraries replaces library placeholders with the linked address.
// Only single-library linking is resolved; every placeholder gets the same address.
func substituteLibraries(bytecode []byte, libraries map[string]string) []byte {
	bytecodeHex := string(bytecode)
	if !libraryPlaceholder.MatchString(bytecodeHex) {
		bytecodeHex = hex.EncodeToString(bytecode)
	}

	for _, addr := range libraries {
		addr = strings.ToLower(strings.TrimPrefix(addr, "0x"))
		bytecodeHex = libraryPlaceholder.ReplaceAllString(bytecodeHex, addr)
	}

	result, err := hex.DecodeString(strings.TrimPrefix(bytecodeHex, "0x"))
	if err != nil {
		return bytecode
	}
	return result
}

// HasLibraryPlaceholders checks if bytecode contains library placeholders
func HasLibraryPlaceholders(bytecode []byte) bool {
	return libraryPlaceholder.Match(bytecode)
}
