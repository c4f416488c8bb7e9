package domain

import "strings"

// CardNumberLength: длина номера карты.
const CardNumberLength = 15

// accountNumberLength: первые цифры карты кодируют номер счёта.
const accountNumberLength = 2

// CardNumber: проверенный номер карты: ровно 15 цифр.
type CardNumber string

// ParseCardNumber проверяет номер карты.
func ParseCardNumber(s string) (CardNumber, error) {
	if len(s) != CardNumberLength {
		return "", ErrInvalidCardNumber
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", ErrInvalidCardNumber
		}
	}
	return CardNumber(s), nil
}

// AccountNumber возвращает номер счёта в сервисе счетов.
func (c CardNumber) AccountNumber() string {
	return string(c[:accountNumberLength])
}

// Masked скрывает середину номера для логов и событий.
func (c CardNumber) Masked() string {
	if len(c) != CardNumberLength {
		return strings.Repeat("*", len(c))
	}
	return string(c[:6]) + strings.Repeat("*", CardNumberLength-10) + string(c[CardNumberLength-4:])
}

func (c CardNumber) String() string {
	return string(c)
}
