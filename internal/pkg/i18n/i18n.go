// Package i18n picks the language for user-facing API messages.
package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Key identifies a translatable message.
type Key string

const (
	QuotaExceeded      Key = "quota_exceeded"
	InvalidCredentials Key = "invalid_credentials"
	AccountDisabled    Key = "account_disabled"
	AccountClosed      Key = "account_closed"
	LoggedOut          Key = "logged_out"
	SubscriptionActive Key = "subscription_active"
	AssistantFailed    Key = "assistant_failed"
)

// Spanish is first so it wins when nothing in Accept-Language matches.
var supported = []language.Tag{
	language.Spanish,
	language.English,
}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[Key]string{
	language.Spanish: {
		QuotaExceeded:      "Has alcanzado el límite de mensajes gratuitos. Suscríbete para continuar.",
		InvalidCredentials: "Usuario o contraseña incorrectos",
		AccountDisabled:    "Tu cuenta ha sido desactivada",
		AccountClosed:      "Tu cuenta ha sido cerrada",
		LoggedOut:          "Sesión cerrada",
		SubscriptionActive: "Suscripción activada",
		AssistantFailed:    "No se pudo obtener una respuesta del asistente",
	},
	language.English: {
		QuotaExceeded:      "You have reached the free message limit. Subscribe to keep chatting.",
		InvalidCredentials: "Invalid username or password",
		AccountDisabled:    "Your account has been deactivated",
		AccountClosed:      "Your account has been closed",
		LoggedOut:          "Logged out",
		SubscriptionActive: "Subscription activated",
		AssistantFailed:    "Could not get a response from the assistant",
	},
}

// Negotiate returns the best supported language for an Accept-Language value.
func Negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// T translates key into lang, falling back to the default language.
func T(lang language.Tag, key Key) string {
	if msgs, ok := catalog[lang]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	return catalog[supported[0]][key]
}

// FromRequest translates key using the request's Accept-Language header.
func FromRequest(r *http.Request, key Key) string {
	return T(Negotiate(r.Header.Get("Accept-Language")), key)
}
