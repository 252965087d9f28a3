package domain

import (
	"sort"
	"strings"
)

const (
	// DefaultMenuCategory — категория блюда, у которого она не указана.
	DefaultMenuCategory = "Miscellaneous"
	DefaultDishName     = "Unnamed Dish"
)

// MenuItem — блюдо из меню. Цена хранится в пайсах.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	Image       string
	PriceMinor  int64
	Category    string
	Tags        []string
}

// Normalized возвращает копию блюда с заполненными названием, категорией и тегами.
func (m MenuItem) Normalized() MenuItem {
	out := m
	out.Name = strings.TrimSpace(m.Name)
	if out.Name == "" {
		out.Name = DefaultDishName
	}
	out.Category = strings.TrimSpace(m.Category)
	if out.Category == "" {
		out.Category = DefaultMenuCategory
	}
	out.Tags = make([]string, 0, len(m.Tags))
	for _, tag := range m.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out.Tags = append(out.Tags, tag)
		}
	}
	if out.PriceMinor < 0 {
		out.PriceMinor = 0
	}
	return out
}

// MenuCategories собирает отсортированный список категорий без повторов.
// Блюда без категории не учитываются; если категорий нет совсем, список
// состоит из DefaultMenuCategory.
func MenuCategories(items []MenuItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		c := strings.TrimSpace(it.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return []string{DefaultMenuCategory}
	}
	sort.Strings(out)
	return out
}
