// Package fixedpoint concentra a aritmética de dinheiro da liquidação:
// operações u64 com checagem explícita de overflow e multiplicação com
// intermediário de 128 bits antes de estreitar para 64 bits.
package fixedpoint

import (
	"errors"
	"math/bits"
)

// ErrOverflow indica que uma operação estouraria (ou truncaria) um u64.
var ErrOverflow = errors.New("fixedpoint: arithmetic overflow")

// ErrDivByZero indica divisor zero em MulDiv.
var ErrDivByZero = errors.New("fixedpoint: division by zero")

// Add soma a+b falhando em overflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub subtrai a-b falhando se b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// MulDiv calcula floor(a*b/d) com o produto em 128 bits.
// Falha se d == 0 ou se o quociente não couber em 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivByZero
	}
	hi, lo := bits.Mul64(a, b)
	// bits.Div64 entra em pânico quando hi >= d (quociente > 64 bits)
	if hi >= d {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
