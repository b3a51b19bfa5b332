// Package money хранит денежные суммы в копейках и выполняет округления,
// принятые при расчетах: 2 знака для валюты расчетов, 8 знаков для криптовалют.
package money

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Amount сумма в минимальных единицах валюты расчетов (копейках).
type Amount int64

// FromFloat переводит сумму в валюте в копейки, округляя до 2 знаков.
func FromFloat(v float64) Amount {
	return Amount(math.Round(v * 100))
}

// Float возвращает сумму в основных единицах валюты.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

// Percent возвращает p процентов от суммы с округлением до копейки.
func (a Amount) Percent(p int64) Amount {
	v := int64(a) * p
	if v >= 0 {
		return Amount((v + 50) / 100)
	}
	return Amount((v - 50) / 100)
}

func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON пишет сумму числом с двумя знаками после точки.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON принимает число или строку с числом.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("money: invalid amount %s", data)
		}
		n = json.Number(s)
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return fmt.Errorf("money: invalid amount %s: %w", data, err)
	}
	*a = FromFloat(f)
	return nil
}

// Round округляет v до places знаков после точки.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// FormatCrypto печатает количество криптовалюты с 8 знаками.
func FormatCrypto(v float64) string {
	return strconv.FormatFloat(Round(v, 8), 'f', 8, 64)
}
