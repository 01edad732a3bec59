package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"(512) 555-0100", "+15125550100"},
		{"512.555.0100", "+15125550100"},
		{"+1 512 555 0100", "+15125550100"},
		{"15125550100", "+15125550100"},
		{"555-0100", ""},
		{"(012) 555-0100", ""},
		{"(512) 055-0100", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Phone(tt.in))
		})
	}
}

func TestIsTollFree(t *testing.T) {
	assert.True(t, IsTollFree("(800) 555-0100"))
	assert.True(t, IsTollFree("+18885550100"))
	assert.False(t, IsTollFree("+15125550100"))
	assert.False(t, IsTollFree("garbage"))
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "jane@ace.com", Email("  Jane@Ace.COM "))
	assert.Equal(t, "jane@ace.com", Email("mailto:jane@ace.com"))
	assert.Empty(t, Email("not-an-email"))
	assert.Empty(t, Email("jane@ace"))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://aceplumbing.com", URL("aceplumbing.com/"))
	assert.Equal(t, "http://ace.com/contact", URL("http://ace.com/contact"))
	assert.Empty(t, URL("not a url"))
	assert.Empty(t, URL(""))
}

func TestZip(t *testing.T) {
	assert.Equal(t, "78701", Zip("78701-1234"))
	assert.Equal(t, "78701", Zip(" 78701 "))
	assert.Empty(t, Zip("787"))
}

func TestStateCode(t *testing.T) {
	assert.Equal(t, "TX", StateCode("tx"))
	assert.Equal(t, "TX", StateCode("Texas"))
	assert.Equal(t, "NY", StateCode("new  york"))
	assert.Equal(t, "DC", StateCode("District of Columbia"))
	assert.Empty(t, StateCode("ON"))
	assert.Empty(t, StateCode("Ontario"))
}

func TestText(t *testing.T) {
	assert.Equal(t, "Joe's Plumbing & Heating", Text("  <b>Joe's</b>   Plumbing &amp; Heating\n"))
	assert.Equal(t, "Ace Plumbing", Text("Ace\t Plumbing"))
	assert.Empty(t, Text("<script>x</script>"))
}

func TestRecord_Normalizes(t *testing.T) {
	raw := model.Record{
		BusinessName: "  Ace   Plumbing ",
		Phone:        "(512) 555-0100",
		Email:        "Info@AcePlumbing.com",
		Website:      "aceplumbing.com",
		City:         " Austin ",
		State:        "Texas",
		ZipCode:      "78701-0001",
	}

	rec, err := Record(raw)
	require.NoError(t, err)

	assert.Equal(t, "Ace Plumbing", rec.BusinessName)
	assert.Equal(t, "+15125550100", rec.Phone)
	assert.Equal(t, "info@aceplumbing.com", rec.Email)
	assert.Equal(t, "https://aceplumbing.com", rec.Website)
	require.NotNil(t, rec.HasWebsite)
	assert.True(t, *rec.HasWebsite)
	assert.Equal(t, "Austin", rec.City)
	assert.Equal(t, "TX", rec.State)
	assert.Equal(t, "78701", rec.ZipCode)
	assert.Equal(t, "unknown", rec.Source)
	require.NotNil(t, rec.QualityScore)
	assert.Equal(t, 8+10+7+4, *rec.QualityScore)

	assert.Equal(t, "  Ace   Plumbing ", raw.BusinessName, "input is not mutated")
}

func TestRecord_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  model.Record
	}{
		{"missing name", model.Record{City: "Austin"}},
		{"markup only name", model.Record{BusinessName: "<br/>"}},
		{"closed", model.Record{BusinessName: "Ace Plumbing (CLOSED)"}},
		{"permanently closed lower", model.Record{BusinessName: "Ace - permanently closed"}},
		{"non US state", model.Record{BusinessName: "Maple Cafe", State: "Ontario"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Record(tt.raw)
			require.Error(t, err)
			assert.True(t, IsRejected(err))
		})
	}
}

func TestRecord_ClosedIsWholeWord(t *testing.T) {
	rec, err := Record(model.Record{BusinessName: "Enclosed Porch Builders"})
	require.NoError(t, err)
	assert.Equal(t, "Enclosed Porch Builders", rec.BusinessName)
}
