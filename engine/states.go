package engine

import "strings"

// State is a node of the scripted dialogue. StateNone means no dialogue is active.
type State string

const (
	StateNone                        State = ""
	StateMenuPrincipal               State = "menu_principal"
	StateEsperandoArea               State = "esperando_area"
	StateEsperandoAreaOtro           State = "esperando_area_otro"
	StateEsperandoTipoAutomatizacion State = "esperando_tipo_automatizacion"
	StateEsperandoTipoOtro           State = "esperando_tipo_otro"
	StateEsperandoContacto           State = "esperando_contacto"
	StateEsperandoEmail              State = "esperando_email"
	StateInfoServicios               State = "info_servicios"
)

// ParseState maps a stored column value to a State. Unknown names are kept as-is
// so the machine can reset them.
func ParseState(s string) State {
	return State(strings.TrimSpace(s))
}

func (s State) Known() bool {
	if s == StateNone {
		return true
	}
	_, ok := transitions[s]
	return ok
}

// Ptr is the nullable column value for the state.
func (s State) Ptr() *string {
	if s == StateNone {
		return nil
	}
	v := string(s)
	return &v
}

/************************************************
/**** MARK: INTENTS / CONTACT MODES ****/
/************************************************/
const (
	INTENT_AUTOMATIZAR            = "automatizar_procesos"
	INTENT_SERVICIOS              = "conocer_servicios"
	INTENT_ASESOR                 = "hablar_con_asesor"
	INTENT_AUTOMATIZAR_DESDE_INFO = "automatizar_procesos_desde_info"

	CONTACT_MODE_VIDEOLLAMADA = "videollamada"
	CONTACT_MODE_WHATSAPP     = "whatsapp"
	CONTACT_MODE_EMAIL        = "email"
)

var areaLabels = map[string]string{
	"1": "1️⃣ Ventas",
	"2": "2️⃣ Marketing",
	"3": "3️⃣ Finanzas",
	"4": "4️⃣ Operaciones",
	"5": "5️⃣ Atención al cliente",
}

var automationLabels = map[string]string{
	"1": "1️⃣ CRM",
	"2": "2️⃣ Gestión de clientes",
	"3": "3️⃣ Análisis de datos",
}

func areaLabel(code string) string {
	if l, ok := areaLabels[code]; ok {
		return l
	}
	return "Área código " + code
}

func automationLabel(code string) string {
	if l, ok := automationLabels[code]; ok {
		return l
	}
	return "Tipo automatización código " + code
}

var politeWords = map[string]bool{
	"gracias":        true,
	"muchas gracias": true,
	"ok":             true,
	"okay":           true,
	"dale":           true,
	"perfecto":       true,
	"genial":         true,
	"listo":          true,
	"vale":           true,
	"bien":           true,
	"entendido":      true,
	"👍":              true,
}

func isPolite(input string) bool {
	return politeWords[input]
}

var areaKeywords = []string{
	"venta", "marketing", "finanza", "operacion", "operación", "atención", "atencion", "cliente",
}

func mentionsArea(input string) bool {
	for _, kw := range areaKeywords {
		if strings.Contains(input, kw) {
			return true
		}
	}
	return false
}

/************************************************
/**** MARK: TEXTOS ****/
/************************************************/
const msgMainMenu = "👋 ¡Hola! ¿En qué podemos ayudarte?\n" +
	"1️⃣ Automatizar procesos\n" +
	"2️⃣ Conocer nuestros servicios\n" +
	"3️⃣ Hablar con un asesor\n\n" +
	"Escribe *salir* en cualquier momento para volver a empezar."
const msgReset = "🔄 Listo, reiniciamos la conversación."
const msgAck = "¡Con gusto! 😊"
const msgMenuReprompt = "Por favor elige una opción: 1, 2 o 3."
const msgAreaMenu = "¿En qué área de tu negocio te gustaría automatizar?\n" +
	"1️⃣ Ventas\n" +
	"2️⃣ Marketing\n" +
	"3️⃣ Finanzas\n" +
	"4️⃣ Operaciones\n" +
	"5️⃣ Atención al cliente\n" +
	"6️⃣ Otra área"
const msgAreaReprompt = "Por favor elige una opción del 1 al 6."
const msgAreaOther = "Cuéntanos en qué área te gustaría automatizar."
const msgTypeMenu = "¿Qué tipo de automatización te interesa?\n" +
	"1️⃣ CRM\n" +
	"2️⃣ Gestión de clientes\n" +
	"3️⃣ Análisis de datos\n" +
	"4️⃣ Otro"
const msgTypeReprompt = "Por favor elige una opción del 1 al 4."
const msgTypeOther = "Descríbenos brevemente qué te gustaría automatizar."
const msgServices = "Ayudamos a empresas a automatizar ventas, marketing, finanzas, operaciones " +
	"y atención al cliente sobre WhatsApp. Cuéntanos qué área te interesa."
const msgInfoFollowUp = "¿Tienes alguna otra pregunta? Estamos aquí para ayudarte."
const msgContactMenu = "¿Cómo prefieres que te contactemos?\n" +
	"1️⃣ Videollamada\n" +
	"2️⃣ WhatsApp\n" +
	"3️⃣ Correo electrónico"
const msgContactReprompt = "Por favor elige una opción: 1, 2 o 3."
const msgAgentWhatsApp = "✅ Perfecto, un asesor te escribirá por este mismo chat en breve."
const msgAskEmail = "📧 Escríbenos tu correo electrónico."
const msgEmailReprompt = "Ese correo no parece válido. Por favor escribe un correo electrónico válido."

func msgSchedule(url string) string {
	return "📅 Agenda tu videollamada aquí: " + url
}

func msgEmailThanks(email string) string {
	return "✅ ¡Gracias! Te escribiremos a " + email + "."
}

func msgAdvisor(automation string) string {
	return "✅ ¡Gracias! Un asesor revisará tu caso (" + automation + ") y te contactará pronto."
}
