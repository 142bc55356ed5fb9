package fixedpoint

import "errors"

// BpsDenominator é o denominador de taxas em basis points (10000 = 100%).
const BpsDenominator = 10_000

// ErrInvalidRates indica configuração de taxas fora dos limites.
var ErrInvalidRates = errors.New("fixedpoint: invalid fee rates")

// Breakdown descreve a taxa cobrada sobre um lucro.
type Breakdown struct {
	Total     uint64 // taxa total (operador + plataforma)
	Authority uint64 // parcela do operador do mercado
	Host      uint64 // parcela da plataforma
	Remainder uint64 // lucro líquido que fica com o apostador
}

// ValidateRates exige cada taxa <= 10000 e a soma <= 10000.
func ValidateRates(feeBps, hostBps uint16) error {
	if feeBps > BpsDenominator || hostBps > BpsDenominator {
		return ErrInvalidRates
	}
	if uint32(feeBps)+uint32(hostBps) > BpsDenominator {
		return ErrInvalidRates
	}
	return nil
}

// ProfitFee retorna floor(profit * (fee+host) / 10000).
func ProfitFee(profit uint64, feeBps, hostBps uint16) (uint64, error) {
	total := uint64(feeBps) + uint64(hostBps)
	if total == 0 {
		return 0, nil
	}
	return MulDiv(profit, total, BpsDenominator)
}

// Split divide amount entre operador e plataforma na proporção fee:host.
// Com as duas taxas zeradas tudo vai para o operador.
func Split(amount uint64, feeBps, hostBps uint16) (authority, host uint64, err error) {
	total := uint64(feeBps) + uint64(hostBps)
	if total == 0 {
		return amount, 0, nil
	}
	authority, err = MulDiv(amount, uint64(feeBps), total)
	if err != nil {
		return 0, 0, err
	}
	host, err = Sub(amount, authority)
	if err != nil {
		return 0, 0, err
	}
	return authority, host, nil
}

// ComputeFee aplica as taxas sobre o lucro e separa as parcelas.
func ComputeFee(profit uint64, feeBps, hostBps uint16) (Breakdown, error) {
	fee, err := ProfitFee(profit, feeBps, hostBps)
	if err != nil {
		return Breakdown{}, err
	}
	authority, host, err := Split(fee, feeBps, hostBps)
	if err != nil {
		return Breakdown{}, err
	}
	rem, err := Sub(profit, fee)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{Total: fee, Authority: authority, Host: host, Remainder: rem}, nil
}
