package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestLoadFile_JSON(t *testing.T) {
	list := writeFile(t, "list.json", `[
		{"business_name": "Ace Plumbing", "phone": "813-555-0100", "google_rating": 4.6, "tech_stack": ["WordPress"]}
	]`)
	recs, err := LoadFile(list)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Ace Plumbing", recs[0].BusinessName)
	require.NotNil(t, recs[0].GoogleRating)
	assert.Equal(t, 4.6, *recs[0].GoogleRating)

	wrapped := writeFile(t, "wrapped.json", `{"records": [{"business_name": "A"}, {"business_name": "B"}]}`)
	recs, err = LoadFile(wrapped)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "leads.yaml", `records:
  - business_name: Ace Plumbing
    city: Tampa
    state: FL
    google_review_count: 120
    yelp_rating: 4
    bbb_accredited: true
    tech_stack: [WordPress, Google Analytics]
    unknown_key: ignored
`)
	recs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "Tampa", r.City)
	require.NotNil(t, r.GoogleReviewCount)
	assert.Equal(t, 120, *r.GoogleReviewCount)
	require.NotNil(t, r.YelpRating)
	assert.Equal(t, 4.0, *r.YelpRating)
	require.NotNil(t, r.BBBAccredited)
	assert.True(t, *r.BBBAccredited)
	assert.Equal(t, []string{"WordPress", "Google Analytics"}, r.TechStack)
}

func TestLoadFile_CSV(t *testing.T) {
	path := writeFile(t, "leads.csv", "Business_Name,Phone,City,State,Google_Rating,Tech_Stack,Year_Established\n"+
		"Ace Plumbing,(813) 555-0100,Tampa,FL,4.5,WordPress; Hotjar,1998\n"+
		"Best Roofing,,Austin,TX,,,\n")
	recs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "(813) 555-0100", recs[0].Phone)
	assert.Equal(t, []string{"WordPress", "Hotjar"}, recs[0].TechStack)
	require.NotNil(t, recs[0].YearEstablished)
	assert.Equal(t, 1998, *recs[0].YearEstablished)
	assert.Nil(t, recs[1].GoogleRating)
}

func TestLoadFile_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)
	for _, cells := range [][]string{
		{"Business_Name", "City", "State", "Google_Review_Count"},
		{"Ace Plumbing", "Tampa", "FL", "87"},
		{"", "", "", ""},
		{"Best Roofing", "Austin", "TX", ""},
	} {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))

	recs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ace Plumbing", recs[0].BusinessName)
	require.NotNil(t, recs[0].GoogleReviewCount)
	assert.Equal(t, 87, *recs[0].GoogleReviewCount)
	assert.Equal(t, "TX", recs[1].State)
	assert.Nil(t, recs[1].GoogleReviewCount)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(writeFile(t, "leads.txt", "x"))
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = LoadFile(writeFile(t, "bad.csv", "business_name,google_rating\nAce,high\n"))
	assert.ErrorContains(t, err, "google_rating")

	_, err = LoadFile(writeFile(t, "scalar.yaml", "just a string\n"))
	assert.Error(t, err)

	_, err = LoadFile("/nonexistent/leads.json")
	assert.Error(t, err)
}

func TestFileProducer_Filters(t *testing.T) {
	path := writeFile(t, "leads.json", `[
		{"business_name": "Ace Plumbing", "category": "Plumber", "city": "Tampa", "state": "FL"},
		{"business_name": "Best Roofing", "category": "Roofer", "city": "Tampa", "state": "FL"},
		{"business_name": "Austin Pipes", "category": "Plumber", "city": "Austin", "state": "TX"}
	]`)
	p := &FileProducer{Path: path}

	got, err := p.Search(context.Background(), "plumb", "Tampa, FL", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ace Plumbing", got[0].BusinessName)
	assert.Equal(t, "file:leads.json", got[0].Source)

	byState, err := p.Search(context.Background(), "", "TX", 0)
	require.NoError(t, err)
	assert.Len(t, byState, 1)

	all, err := p.Search(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
