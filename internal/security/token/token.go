// Package token genera secretos y códigos aleatorios.
package token

import (
	"crypto/rand"
	"math/big"
)

// Generate devuelve un entero aleatorio criptográfico en [0, 2^bits)
// codificado en base 36. Es el formato de api keys, secrets, códigos de
// autorización y access/refresh tokens.
func Generate(bits uint) string {
	max := new(big.Int).Lsh(big.NewInt(1), bits)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand no falla salvo que el sistema esté roto
		panic(err)
	}
	return n.Text(36)
}

// Secret genera un secreto de 256 bits (api keys, client secrets, store secrets).
func Secret() string { return Generate(256) }

// Code genera un código de 128 bits (authorization codes).
func Code() string { return Generate(128) }

// NumericCode returns a code of `length` decimal digits sampled from 0-9
// without repetition. Used for SMS verification codes; length must be <= 10.
func NumericCode(length int) string {
	if length > 10 {
		length = 10
	}
	digits := []byte("0123456789")
	out := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			panic(err)
		}
		k := int(j.Int64())
		out = append(out, digits[k])
		digits = append(digits[:k], digits[k+1:]...)
	}
	return string(out)
}
