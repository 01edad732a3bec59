package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPersonName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"John Smith", true},
		{"Mary Ann Jones", true},
		{"John", false},
		{"Tampa Florida", false},
		{"New York", false},
		{"Ann Arbor", false},
		{"Baton Rouge", false},
		{"Salt Lake City", false},
		{"Worcester Smith", true},
		{"Smith Plumbing LLC", false},
		{"John FL", false},
		{"Jo A", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPersonName(tt.name))
		})
	}
}

func TestFindOwner(t *testing.T) {
	tests := []struct {
		text      string
		wantName  string
		wantTitle string
		wantOK    bool
	}{
		{"Our team: Jane Doe, managing director of operations", "Jane Doe", "Managing Director", true},
		{"Owner: Jane Doe", "Jane Doe", "Owner", true},
		{"Meet our founder Sam Lee today", "Sam Lee", "Founder", true},
		{"The shop was founded by Carlos Rivera in 1998", "Carlos Rivera", "Owner", true},
		{"Serving Tampa Florida, Owner operated since 1990", "", "", false},
		{"No people mentioned here", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, title, ok := findOwner(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantTitle, title)
		})
	}
}

func TestTitleIn(t *testing.T) {
	assert.Equal(t, "CEO", titleIn("our ceo and founder"))
	assert.Equal(t, "President", titleIn("Company President"))
	assert.Empty(t, titleIn("nothing relevant"))
}
