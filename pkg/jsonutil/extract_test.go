package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"intent":"BUY"}`, `{"intent":"BUY"}`, true},
		{"prose around", `Sure! {"intent":"SELL","entities":{"qty":5}} hope that helps`, `{"intent":"SELL","entities":{"qty":5}}`, true},
		{"fenced with tag", "```json\n{\"intent\":\"STATUS\"}\n```", `{"intent":"STATUS"}`, true},
		{"brace in string", `{"note":"use } carefully"}`, `{"note":"use } carefully"}`, true},
		{"escaped quote", `{"note":"say \"hi\" }"}`, `{"note":"say \"hi\" }"}`, true},
		{"unterminated", `{"intent":"BUY"`, "", false},
		{"empty", "   ", "", false},
		{"no json", "I cannot help with that", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractArray(t *testing.T) {
	got, ok := ExtractArray("here: [1, [2, 3]] done")
	assert.True(t, ok)
	assert.Equal(t, "[1, [2, 3]]", got)
}
