package intent

import "strings"

// Label identifies which agent should process a conversation turn.
// The set of labels is closed: anything outside it resolves to Other.
type Label string

const (
	CheckOrder            Label = "check order"
	ShippingStatus        Label = "shipping status"
	Billing               Label = "billing"
	CheckPayment          Label = "check payment"
	ForgotPassword        Label = "forgot password"
	ChangeAddress         Label = "change address"
	ChangeShippingAddress Label = "change shipping address"
	ChangeEmail           Label = "change email"
	ChangePhone           Label = "change phone"
	ChangeName            Label = "change name"
	Refund                Label = "refund"
	MessageAgent          Label = "message agent"
	LiveAgent             Label = "live agent"
	Memory                Label = "memory"
	Other                 Label = "other"
)

// All lists every routable label, Other included.
var All = []Label{
	CheckOrder,
	ShippingStatus,
	Billing,
	CheckPayment,
	ForgotPassword,
	ChangeAddress,
	ChangeShippingAddress,
	ChangeEmail,
	ChangePhone,
	ChangeName,
	Refund,
	MessageAgent,
	LiveAgent,
	Memory,
	Other,
}

// synonyms maps raw model output to canonical labels. Lookups are
// case-insensitive; every canonical label maps to itself.
var synonyms = map[string]Label{
	"email agent":          MessageAgent,
	"message":              MessageAgent,
	"notify user":          MessageAgent,
	"chat history":         Memory,
	"history":              Memory,
	"return":               Refund,
	"money back":           Refund,
	"human agent":          LiveAgent,
	"payment status":       CheckPayment,
	"update address":       ChangeAddress,
	"reset password":       ForgotPassword,
	"order status":         CheckOrder,
	"track order":          CheckOrder,
	"delivery":             ShippingStatus,
	"track shipping":       ShippingStatus,
	"general":              Other,
	"unknown":              Other,
	"none":                 Other,
	"chat":                 Other,
}

func init() {
	for _, l := range All {
		synonyms[string(l)] = l
	}
}

// Known reports whether l is one of the closed label set.
func Known(l Label) bool {
	_, ok := synonyms[string(l)]
	return ok && synonyms[string(l)] == l
}

// Normalize maps untrusted raw label text to a canonical Label. Unrecognized
// input resolves to Other, never to an empty label.
func Normalize(raw string) Label {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, `"'.!`)
	s = strings.Join(strings.Fields(s), " ")
	if l, ok := synonyms[s]; ok {
		return l
	}
	return Other
}

// stickyLabels are intents whose agents commonly prompt the user for a bare
// follow-up value (an id, an address, a name) that matches no keyword.
var stickyLabels = map[Label]struct{}{
	Refund:        {},
	Billing:       {},
	CheckPayment:  {},
	ChangeAddress: {},
	ChangePhone:   {},
	ChangeName:    {},
}

// Sticky reports whether a previously resolved label should absorb an
// ambiguous follow-up turn in the same conversation.
func Sticky(l Label) bool {
	_, ok := stickyLabels[l]
	return ok
}
