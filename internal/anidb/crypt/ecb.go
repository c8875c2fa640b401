package crypt

import "crypto/cipher"

// ecbEncrypter and ecbDecrypter implement cipher.BlockMode for ECB
// mode, which crypto/cipher deliberately does not provide (ECB leaks
// plaintext structure and the stdlib authors don't want it used by
// accident). AniDB's UDP wire encryption layer specifies ECB, so this
// wraps the same pattern crypto/cipher's own CBC mode uses, applying
// the block cipher independently to each block instead of chaining.
type ecbEncrypter struct {
	block     cipher.Block
	blockSize int
}

// NewECBEncrypter returns a cipher.BlockMode that encrypts each block
// of the input independently under block.
func NewECBEncrypter(block cipher.Block) cipher.BlockMode {
	return &ecbEncrypter{block: block, blockSize: block.BlockSize()}
}

func (e *ecbEncrypter) BlockSize() int { return e.blockSize }

func (e *ecbEncrypter) CryptBlocks(dst, src []byte) {
	if len(src)%e.blockSize != 0 {
		panic("crypt: input not a multiple of the block size")
	}
	if len(dst) < len(src) {
		panic("crypt: output smaller than input")
	}
	for len(src) > 0 {
		e.block.Encrypt(dst, src[:e.blockSize])
		src = src[e.blockSize:]
		dst = dst[e.blockSize:]
	}
}

type ecbDecrypter struct {
	block     cipher.Block
	blockSize int
}

// NewECBDecrypter returns a cipher.BlockMode that decrypts each block
// of the input independently under block.
func NewECBDecrypter(block cipher.Block) cipher.BlockMode {
	return &ecbDecrypter{block: block, blockSize: block.BlockSize()}
}

func (d *ecbDecrypter) BlockSize() int { return d.blockSize }

func (d *ecbDecrypter) CryptBlocks(dst, src []byte) {
	if len(src)%d.blockSize != 0 {
		panic("crypt: input not a multiple of the block size")
	}
	if len(dst) < len(src) {
		panic("crypt: output smaller than input")
	}
	for len(src) > 0 {
		d.block.Decrypt(dst, src[:d.blockSize])
		src = src[d.blockSize:]
		dst = dst[d.blockSize:]
	}
}
