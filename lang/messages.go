package lang

import "context"

// Message keys for the public, user-facing texts of the auth endpoints. These
// are the only failure texts that ever leave the service.
const (
	MsgLoginSuccess       = "login_success"
	MsgInvalidCredentials = "invalid_credentials"
	MsgAccountLocked      = "account_locked"
	MsgInternalError      = "internal_error"
	MsgInvalidRequest     = "invalid_request"
	MsgResetRequested     = "password_reset_requested"
)

const DefaultLanguage = "en"

var catalog = map[string]map[string]string{
	"en": {
		MsgLoginSuccess:       "Login successful.",
		MsgInvalidCredentials: "Invalid email or password.",
		MsgAccountLocked:      "Account temporarily locked. Please try again later.",
		MsgInternalError:      "An internal error occurred. Please try again later.",
		MsgInvalidRequest:     "The request could not be processed.",
		MsgResetRequested:     "If the account exists, password reset instructions have been sent.",
	},
	"es": {
		MsgLoginSuccess:       "Inicio de sesión correcto.",
		MsgInvalidCredentials: "Correo electrónico o contraseña no válidos.",
		MsgAccountLocked:      "Cuenta bloqueada temporalmente. Inténtelo de nuevo más tarde.",
		MsgInternalError:      "Se produjo un error interno. Inténtelo de nuevo más tarde.",
		MsgInvalidRequest:     "No se pudo procesar la solicitud.",
		MsgResetRequested:     "Si la cuenta existe, se han enviado instrucciones para restablecer la contraseña.",
	},
}

// Supported lists the languages with a message catalog.
func Supported() []string { return []string{"en", "es"} }

// Translate returns the text for key in language, falling back to English and
// then to the key itself.
func Translate(language, key string) string {
	if m, ok := catalog[language]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := catalog[DefaultLanguage][key]; ok {
		return s
	}
	return key
}

// Message translates key into the language attached to ctx.
func Message(ctx context.Context, key string) string {
	l, ok := LanguageFromContext(ctx)
	if !ok {
		l = DefaultLanguage
	}
	return Translate(l, key)
}
