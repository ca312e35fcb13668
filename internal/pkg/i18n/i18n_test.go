package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   language.Tag
	}{
		{"empty defaults to spanish", "", language.Spanish},
		{"english", "en-US,en;q=0.9", language.English},
		{"spanish region", "es-MX", language.Spanish},
		{"unsupported falls back", "de-DE", language.Spanish},
		{"garbage falls back", ";;;", language.Spanish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Negotiate(tt.header))
		})
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Language", "en")
	assert.Equal(t, "Invalid username or password", FromRequest(req, InvalidCredentials))

	req.Header.Set("Accept-Language", "es")
	assert.Equal(t, "Usuario o contraseña incorrectos", FromRequest(req, InvalidCredentials))
}

func TestCatalogComplete(t *testing.T) {
	for key := range catalog[language.Spanish] {
		_, ok := catalog[language.English][key]
		assert.True(t, ok, "english catalog is missing %q", key)
	}
}
