package service

import (
	"crypto/rand"
	"math/big"
)

const (
	resetCodeLength   = 6
	resetCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
)

// GenerateResetCode produce un código de 6 caracteres sobre un alfabeto
// URL-safe en mayúsculas. No se verifica unicidad contra el directorio: la
// entropía por emisión hace la colisión despreciable.
func GenerateResetCode() (string, error) {
	buf := make([]byte, resetCodeLength)
	size := big.NewInt(int64(len(resetCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		buf[i] = resetCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
