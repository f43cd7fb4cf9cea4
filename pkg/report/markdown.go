package report

import (
	"fmt"
	"strings"
)

// mdBuilder accumulates Markdown lines.
type mdBuilder struct {
	b strings.Builder
}

func (m *mdBuilder) line(s string) {
	m.b.WriteString(s)
	m.b.WriteString("\n")
}

func (m *mdBuilder) linef(format string, args ...interface{}) {
	fmt.Fprintf(&m.b, format, args...)
	m.b.WriteString("\n")
}

func (m *mdBuilder) String() string {
	return m.b.String()
}
