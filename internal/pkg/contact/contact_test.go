package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_Phone(t *testing.T) {
	n := NewNormalizer("")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "e164", in: "+14155552671", want: "+14155552671"},
		{name: "formatted", in: " +1 (415) 555-2671 ", want: "+14155552671"},
		{name: "indonesia", in: "+62 812-3456-7890", want: "+6281234567890"},
		{name: "national without region", in: "4155552671", wantErr: true},
		{name: "invalid number", in: "+1 123", wantErr: true},
		{name: "garbage", in: "call me", wantErr: true},
		{name: "empty", in: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Phone(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_PhoneDefaultRegion(t *testing.T) {
	got, err := NewNormalizer("us").Phone("(415) 555-2671")
	assert.NoError(t, err)
	assert.Equal(t, "+14155552671", got)
}

func TestNormalizer_Email(t *testing.T) {
	n := NewNormalizer("")

	got, err := n.Email("  Alice.Smith@Example.COM ")
	assert.NoError(t, err)
	assert.Equal(t, "alice.smith@example.com", got)

	for _, in := range []string{"", "not-an-email", "Bob <bob@example.com>", "a@b@c"} {
		_, err := n.Email(in)
		assert.ErrorIs(t, err, ErrInvalidFormat, in)
	}
}

func TestNormalizer_CurrencyOf(t *testing.T) {
	n := NewNormalizer("")

	assert.Equal(t, "USD", n.CurrencyOf("+14155552671"))
	assert.Equal(t, "GBP", n.CurrencyOf("+442071838750"))
	assert.Equal(t, "IDR", n.CurrencyOf("+6281234567890"))
	assert.Equal(t, UnknownCurrency, n.CurrencyOf("+2348031234567"))
	assert.Equal(t, UnknownCurrency, n.CurrencyOf("nope"))
	assert.Equal(t, "EUR", CurrencyForRegion(" de "))
}
