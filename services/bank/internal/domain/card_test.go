package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCardNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "15 цифр", input: "123456789012345"},
		{name: "14 цифр", input: "12345678901234", wantErr: true},
		{name: "16 цифр", input: "1234567890123456", wantErr: true},
		{name: "буква", input: "12345678901234a", wantErr: true},
		{name: "пробел", input: "1234 5678901234", wantErr: true},
		{name: "знак минус", input: "-23456789012345", wantErr: true},
		{name: "пусто", input: "", wantErr: true},
		{name: "юникод-цифры", input: "١٢٣٤٥٦٧٨٩٠١٢٣٤٥", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := ParseCardNumber(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCardNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, card.String())
		})
	}
}

func TestCardNumber_AccountNumber(t *testing.T) {
	card, err := ParseCardNumber("004567890123456")
	require.NoError(t, err)

	assert.Equal(t, "00", card.AccountNumber())
}

func TestCardNumber_Masked(t *testing.T) {
	card := CardNumber("123456789012345")

	assert.Equal(t, "123456*****2345", card.Masked())
}
