package crypt

import (
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRoundTrip(t *testing.T) {
	var p Plain
	enc, err := p.Encrypt("FILE fid=1")
	require.NoError(t, err)
	dec, err := p.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "FILE fid=1", dec)
}

func TestAES128ECBRoundTrip(t *testing.T) {
	key := DeriveKey("myapikey", "s0m3s4lt")
	c, err := NewAES128ECB(key)
	require.NoError(t, err)

	msg := "AUTH user=alice&pass=secret&protover=3"
	enc, err := c.Encrypt(msg)
	require.NoError(t, err)
	assert.Equal(t, 0, len(enc)%aes.BlockSize)

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, msg, dec)
}

func TestAES128ECBSameKeyDeterministic(t *testing.T) {
	key := DeriveKey("k", "salt")
	c1, err := NewAES128ECB(key)
	require.NoError(t, err)
	c2, err := NewAES128ECB(key)
	require.NoError(t, err)

	e1, err := c1.Encrypt("hello")
	require.NoError(t, err)
	e2, err := c2.Encrypt("hello")
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
}

func TestAES128ECBDifferentKeysDiffer(t *testing.T) {
	c1, err := NewAES128ECB(DeriveKey("a", "salt"))
	require.NoError(t, err)
	c2, err := NewAES128ECB(DeriveKey("b", "salt"))
	require.NoError(t, err)

	e1, _ := c1.Encrypt("hello")
	e2, _ := c2.Encrypt("hello")
	assert.NotEqual(t, e1, e2)
}

func TestAES128ECBDetectsUnfinishedHandshake(t *testing.T) {
	c, err := NewAES128ECB(DeriveKey("k", "salt"))
	require.NoError(t, err)
	_, err = c.Decrypt([]byte("598 INVALID SESSION KEY"))
	assert.Error(t, err)
}

func TestAES128ECBRejectsShortCiphertext(t *testing.T) {
	c, err := NewAES128ECB(DeriveKey("k", "salt"))
	require.NoError(t, err)
	_, err = c.Decrypt([]byte("partial block"))
	assert.Error(t, err)
}

func TestPKCS7PadUnpad(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31, 32} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i)
		}
		padded := pad(16, data)
		assert.Equal(t, 0, len(padded)%16)
		unpadded, err := unpad(16, padded)
		require.NoError(t, err)
		assert.Equal(t, data, unpadded)
	}
}

func TestPKCS7UnpadRejectsCorruptPadding(t *testing.T) {
	_, err := unpad(16, make([]byte, 16))
	assert.Error(t, err)
}

func TestECBEncryptsBlocksIndependently(t *testing.T) {
	key := DeriveKey("k", "salt")
	c, err := NewAES128ECB(key)
	require.NoError(t, err)

	block := make([]byte, aes.BlockSize)
	repeated := append(append([]byte{}, block...), block...)
	// Exercise the raw block mode directly: two identical plaintext
	// blocks under ECB must encrypt to two identical ciphertext blocks.
	out := make([]byte, len(repeated))
	NewECBEncrypter(c.block).CryptBlocks(out, repeated)
	assert.Equal(t, out[:aes.BlockSize], out[aes.BlockSize:])
}
