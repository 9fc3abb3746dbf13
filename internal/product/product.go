// Package product описывает статический каталог продуктов WorkSmart.
//
// Продукт это тегированное объединение: два курса с фиксированными тегами
// и параметризованный вариант "инструмент", несущий slug. На проводе продукт
// всегда представлен строковым тегом (например, "tool:write-it-better").
package product

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// Kind определяет категорию продукта.
type Kind int

const (
	KindWealth Kind = iota + 1
	KindProductivity
	KindTool
)

func (k Kind) String() string {
	switch k {
	case KindWealth:
		return "wealth"
	case KindProductivity:
		return "productivity"
	case KindTool:
		return "tool"
	default:
		return "unknown"
	}
}

const (
	// TagWealth тег курса по управлению финансами.
	TagWealth = "wealth-course"
	// TagProductivity тег курса по продуктивности.
	TagProductivity = "productivity-course"
	// SelectorTool значение productType в селекторе для покупки отдельного инструмента.
	SelectorTool = "tool"

	toolPrefix = "tool:"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Product покупаемое предложение. Нулевое значение невалидно.
type Product struct {
	kind Kind
	slug string
	name string
}

// Wealth возвращает курс по управлению финансами.
func Wealth() Product {
	return Product{kind: KindWealth, name: "WorkSmart Wealth Course"}
}

// Productivity возвращает курс по продуктивности.
func Productivity() Product {
	return Product{kind: KindProductivity, name: "WorkSmart Productivity Course"}
}

// Tool возвращает отдельный инструмент по slug. Если name пустой, имя строится из slug.
func Tool(slug, name string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if !slugRe.MatchString(slug) {
		return Product{}, fmt.Errorf("%w: bad tool slug %q", models.ErrInvalidProduct, slug)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = titleFromSlug(slug)
	}
	return Product{kind: KindTool, slug: slug, name: name}, nil
}

// Parse разбирает строковый тег продукта.
func Parse(tag string) (Product, error) {
	tag = strings.TrimSpace(tag)
	switch {
	case tag == TagWealth:
		return Wealth(), nil
	case tag == TagProductivity:
		return Productivity(), nil
	case strings.HasPrefix(tag, toolPrefix):
		return Tool(strings.TrimPrefix(tag, toolPrefix), "")
	default:
		return Product{}, fmt.Errorf("%w: unknown tag %q", models.ErrInvalidProduct, tag)
	}
}

// Tag возвращает проводное представление продукта.
func (p Product) Tag() string {
	switch p.kind {
	case KindWealth:
		return TagWealth
	case KindProductivity:
		return TagProductivity
	case KindTool:
		return toolPrefix + p.slug
	default:
		return ""
	}
}

func (p Product) Kind() Kind     { return p.kind }
func (p Product) Slug() string   { return p.slug }
func (p Product) Name() string   { return p.name }
func (p Product) IsValid() bool  { return p.kind != 0 }
func (p Product) String() string { return p.Tag() }

// Selector клиентский запрос на покупку.
type Selector struct {
	ProductType string `json:"productType" validate:"required"`
	ToolName    string `json:"toolName,omitempty"`
	ToolSlug    string `json:"toolSlug,omitempty"`
}

// Resolve превращает селектор в известный продукт.
func (s Selector) Resolve() (Product, error) {
	if s.ProductType == SelectorTool {
		if s.ToolSlug == "" {
			return Product{}, fmt.Errorf("%w: tool slug is required", models.ErrInvalidProduct)
		}
		return Tool(s.ToolSlug, s.ToolName)
	}
	p, err := Parse(s.ProductType)
	if err != nil {
		return Product{}, err
	}
	if p.kind == KindTool && s.ToolName != "" {
		p.name = s.ToolName
	}
	return p, nil
}

func titleFromSlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
