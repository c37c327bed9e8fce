package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobEscape(t *testing.T) {
	cases := map[string]string{
		"ncl:pending:czE:":  "ncl:pending:czE:",
		"ncl:pending:*:":    `ncl:pending:\*:`,
		"a?b[c]d":           `a\?b\[c\]d`,
		`back\slash`:        `back\\slash`,
		"ncl:pending:YS1i:": "ncl:pending:YS1i:",
	}
	for in, want := range cases {
		assert.Equal(t, want, globEscape(in), in)
	}
}
