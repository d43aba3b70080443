package notify

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/template/html/v2"
)

// Kind names an email template.
type Kind string

const (
	KindReceipt      Kind = "receipt"
	KindCancellation Kind = "cancellation"
	KindWelcome      Kind = "welcome"
	KindCollection   Kind = "collection"
	KindCredentials  Kind = "credentials"
)

// Renderer turns template data into HTML markup. It has no side effects.
type Renderer interface {
	Render(kind Kind, data any) (string, error)
}

//go:embed templates/*.html
var templatesFS embed.FS

// HTMLRenderer renders the embedded templates with the fiber html engine.
type HTMLRenderer struct {
	engine *html.Engine
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("clp", FormatCLP)
	engine.AddFunc("abs", func(v int64) int64 {
		if v < 0 {
			return -v
		}
		return v
	})
	engine.AddFunc("numbers", joinNumbers)
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	return &HTMLRenderer{engine: engine}, nil
}

func (r *HTMLRenderer) Render(kind Kind, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, string(kind), data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	return buf.String(), nil
}

// FormatCLP formats whole pesos with '.' as thousands separator: 1234567 -> "1.234.567".
func FormatCLP(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func joinNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
