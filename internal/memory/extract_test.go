package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_OrderIDs(t *testing.T) {
	ents := Extract("please look at ORD-12345 and ord_208, not XORD-999x")
	require.Equal(t, []string{"ORD-12345", "ord_208"}, ents.Orders)
}

func TestExtract_PaymentIDs(t *testing.T) {
	ents := Extract("charged twice on PAY_98765 and PAY-1001")
	require.Equal(t, []string{"PAY_98765", "PAY-1001"}, ents.Payments)
}

func TestExtract_ShortIDsIgnored(t *testing.T) {
	// id digits must be at least three long
	ents := Extract("ORD-12 and PAY_9")
	require.Empty(t, ents.Orders)
	require.Empty(t, ents.Payments)
}

func TestExtract_Emails(t *testing.T) {
	ents := Extract("reach me at jo.doe+test@example.co.uk please")
	require.Equal(t, []string{"jo.doe+test@example.co.uk"}, ents.Emails)
}

func TestExtract_Dates(t *testing.T) {
	ents := Extract("ordered on 2026-08-01, delivered 12/08/2026")
	require.Equal(t, []string{"2026-08-01", "12/08/2026"}, ents.Dates)
}

func TestExtract_Addresses(t *testing.T) {
	ents := Extract("ship it to 123 Main St, Atlanta, GA 30301 instead")
	require.Equal(t, []string{"123 Main St, Atlanta, GA 30301"}, ents.Addresses)
}

func TestExtract_ZipPlusFour(t *testing.T) {
	ents := Extract("45 Oak Ave, Springfield, IL 62704-1234")
	require.Len(t, ents.Addresses, 1)
}

func TestExtract_NothingFound(t *testing.T) {
	ents := Extract("just saying hello")
	require.True(t, ents.Empty())
}

func TestExtract_MixedText(t *testing.T) {
	ents := Extract("refund ORD_777 paid with PAY-888 to a@b.io on 2026-01-02 at 9 Elm Rd, Boston, MA 02110")
	require.Equal(t, []string{"ORD_777"}, ents.Orders)
	require.Equal(t, []string{"PAY-888"}, ents.Payments)
	require.Equal(t, []string{"a@b.io"}, ents.Emails)
	require.Equal(t, []string{"2026-01-02"}, ents.Dates)
	require.Len(t, ents.Addresses, 1)
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("Where IS my order, ORD-552?")
	for _, want := range []string{"where", "is", "my", "order", "ord", "552"} {
		require.Contains(t, toks, want)
	}
	require.NotContains(t, toks, "ORD")
}

func TestTokenize_Empty(t *testing.T) {
	require.Empty(t, Tokenize("  !!! "))
}
