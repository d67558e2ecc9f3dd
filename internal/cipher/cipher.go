// Package cipher implements the line transform applied to every log line
// before it reaches disk.
//
// The transform is deliberately deterministic: the same line always encrypts
// to the same text, so external tooling can diff and verify logs. It keeps
// casual viewers and editors out of the file; it is not a security boundary.
//
// Wire format of one line: base64url(crc32(plain) || plain XOR keystream),
// where the keystream is ChaCha20 under an HKDF-derived key and a zero nonce.
package cipher

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

// ErrDecode is returned when a line is not valid output of this cipher
// under the configured key.
var ErrDecode = errors.New("cipher: cannot decode line")

const (
	keySize  = chacha20.KeySize
	crcSize  = 4
	hkdfInfo = "keytrail:line-cipher:v1"
)

var encoding = base64.RawURLEncoding

// DefaultPassphrase is used when the configuration leaves the passphrase empty.
const DefaultPassphrase = "keytrail"

// LineCipher encrypts and decrypts single log lines.
type LineCipher struct {
	key [keySize]byte
}

// New derives a LineCipher from a passphrase and salt.
func New(passphrase, salt string) (*LineCipher, error) {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}

	c := &LineCipher{}
	r := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte(hkdfInfo))
	if _, err := io.ReadFull(r, c.key[:]); err != nil {
		return nil, fmt.Errorf("derive line key: %w", err)
	}
	return c, nil
}

// xor applies the keystream to src in place.
func (c *LineCipher) xor(buf []byte) {
	var nonce [chacha20.NonceSize]byte
	s, err := chacha20.NewUnauthenticatedCipher(c.key[:], nonce[:])
	if err != nil {
		// Only possible with a wrong key or nonce length, both fixed above.
		panic(err)
	}
	s.XORKeyStream(buf, buf)
}

// Encrypt transforms one plain line.
func (c *LineCipher) Encrypt(line string) string {
	buf := make([]byte, crcSize+len(line))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE([]byte(line)))
	copy(buf[crcSize:], line)
	c.xor(buf[crcSize:])
	return encoding.EncodeToString(buf)
}

// Decrypt reverses Encrypt. Corrupted or foreign lines fail with ErrDecode.
func (c *LineCipher) Decrypt(text string) (string, error) {
	buf, err := encoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(buf) < crcSize {
		return "", fmt.Errorf("%w: %d bytes is too short", ErrDecode, len(buf))
	}

	want := binary.BigEndian.Uint32(buf)
	plain := buf[crcSize:]
	c.xor(plain)

	if crc32.ChecksumIEEE(plain) != want {
		return "", fmt.Errorf("%w: checksum mismatch", ErrDecode)
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrDecode)
	}
	return string(plain), nil
}
