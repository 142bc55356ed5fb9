// Package rent calcula o saldo mínimo que uma conta persistida precisa manter.
package rent

// Valores padrão do substrato.
const (
	DefaultLamportsPerByteYear uint64 = 3480
	DefaultExemptionThreshold  uint64 = 2
	AccountStorageOverhead     uint64 = 128
)

// Calculator devolve o saldo mínimo retido por tamanho de conta.
type Calculator struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

// Default retorna a calculadora com os parâmetros padrão.
func Default() Calculator {
	return Calculator{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance = (overhead + size) * lamportsPerByteYear * threshold
func (c Calculator) MinimumBalance(size int) uint64 {
	return (AccountStorageOverhead + uint64(size)) * c.LamportsPerByteYear * c.ExemptionThreshold
}
