package chat

import (
	"fmt"
	"strings"
)

// welcomeMarker identifies welcome messages. They are left out of
// conversation summaries.
const welcomeMarker = "👋"

type welcomeText struct {
	greeting string
	manual   string // formatted with brand and model
	general  string
	prompt   string
	// manualPrompt is formatted with brand and model.
	manualPrompt string
}

var welcomeTexts = map[string]welcomeText{
	"en": {
		greeting:     "Hi, I'm your Pravus.AI Assistant!",
		manual:       "I'm here to help you get the most out of your %s %s. Ask me about features, setup, troubleshooting or care.",
		general:      "I'm your dedicated product expert, ready to help you understand and get the most out of your electronic devices.",
		prompt:       "How can I assist you today?",
		manualPrompt: "How can I assist you today with your %s %s?",
	},
	"es": {
		greeting:     "¡Hola, soy tu Asistente Pravus.AI!",
		manual:       "Estoy aquí para ayudarte a sacar el máximo provecho de tu %s %s. Pregúntame sobre características, configuración, problemas o cuidados.",
		general:      "Soy tu experto en productos dedicado, listo para ayudarte a entender y aprovechar al máximo tus dispositivos electrónicos.",
		prompt:       "¿Cómo puedo ayudarte hoy?",
		manualPrompt: "¿Cómo puedo ayudarte hoy con tu %s %s?",
	},
}

// welcomeMessage renders the first message of a session. Unknown locales
// fall back to English.
func welcomeMessage(locale string, manual *Manual) string {
	w, ok := welcomeTexts[locale]
	if !ok {
		w = welcomeTexts["en"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", welcomeMarker, w.greeting)
	if manual != nil {
		fmt.Fprintf(&b, w.manual+"\n\n", manual.Brand, manual.Model)
		fmt.Fprintf(&b, "*"+w.manualPrompt+"*", manual.Brand, manual.Model)
	} else {
		b.WriteString(w.general + "\n\n")
		b.WriteString("*" + w.prompt + "*")
	}
	return b.String()
}
