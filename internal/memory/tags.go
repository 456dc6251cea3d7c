package memory

// Domain tag vocabularies. A tag fires when the token set shares at least
// one word with its vocabulary; several tags may fire at once, and none
// firing is just as valid.
var tagVocabulary = []struct {
	tag   string
	words []string
}{
	{"return", []string{"return", "refund", "rma", "exchange", "restocking", "window"}},
	{"shipping", []string{"ship", "shipped", "delivered", "tracking", "carrier", "label"}},
	{"policy", []string{"policy", "warranty", "eligibility", "international"}},
	{"payment", []string{"payment", "charged", "refunded", "authorization", "stripe", "paypal", "square"}},
	{"order", []string{"order", "orders", "purchase", "buy", "bought", "item", "items", "product", "products"}},
	{"account", []string{"account", "login", "password", "email", "username", "profile", "address", "phone", "name"}},
}

// Tags maps a token set to its domain tags, in vocabulary order for
// determinism.
func Tags(tokens map[string]struct{}) []string {
	var hits []string
	for _, v := range tagVocabulary {
		for _, w := range v.words {
			if _, ok := tokens[w]; ok {
				hits = append(hits, v.tag)
				break
			}
		}
	}
	return hits
}
