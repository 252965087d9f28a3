package menu

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// fileItem — блюдо в YAML-файле меню. Категория может прийти в поле
// category, type или food_type; цена числом или строкой вида "₹120".
type fileItem struct {
	ID          string   `yaml:"id" validate:"required"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Image       string   `yaml:"image"`
	Price       string   `yaml:"price"`
	Category    string   `yaml:"category"`
	Type        string   `yaml:"type"`
	FoodType    string   `yaml:"food_type"`
	Tags        []string `yaml:"tags"`
}

type file struct {
	Items []fileItem `yaml:"items" validate:"dive"`
}

// LoadFile читает меню из YAML-файла.
func LoadFile(path string) ([]domain.MenuItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML-меню. Блюдо без id и повтор id дают ошибку,
// нечитаемая цена считается нулевой.
func Parse(data []byte) ([]domain.MenuItem, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse menu file: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: every item needs an id: %v", domain.ErrMenuItemInvalid, err)
	}

	seen := make(map[string]struct{}, len(f.Items))
	out := make([]domain.MenuItem, 0, len(f.Items))
	for _, it := range f.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: blank id", domain.ErrMenuItemInvalid)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrMenuItemInvalid, id)
		}
		seen[id] = struct{}{}

		out = append(out, domain.MenuItem{
			ID:          id,
			Name:        it.Name,
			Description: it.Description,
			Image:       it.Image,
			PriceMinor:  parsePrice(it.Price),
			Category:    firstNonBlank(it.Category, it.Type, it.FoodType),
			Tags:        it.Tags,
		})
	}
	return out, nil
}

func parsePrice(raw string) int64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "₹", ""))
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return 0
	}
	return d.Shift(2).RoundBank(0).IntPart()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
