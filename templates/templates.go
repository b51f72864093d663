package templates

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

const (
	alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	numericChars      = "0123456789"
)

type TemplateEngine struct{}

var (
	templateEngineInstance *TemplateEngine
	templateEngineOnce     sync.Once
)

// NewTemplateEngine returns the singleton instance of TemplateEngine
func NewTemplateEngine() *TemplateEngine {
	templateEngineOnce.Do(func() {
		// Register helpers only once during initialization
		RegisterHelpers()
		templateEngineInstance = &TemplateEngine{}
	})
	return templateEngineInstance
}

// RegisterHelpers registers custom Handlebars helpers available in question
// scripts, e.g. {{randomValue type="NUMERIC" length=10}} or
// {{faker "Person.phone"}}.
func RegisterHelpers() {
	raymond.RegisterHelper("randomValue", func(options *raymond.Options) string {
		randomType := strings.ToUpper(options.HashStr("type"))
		if randomType == "" {
			randomType = "ALPHANUMERIC"
		}

		if randomType == "UUID" {
			return uuid.New().String()
		}

		length := 10
		if lengthVal := options.HashProp("length"); lengthVal != nil {
			switch v := lengthVal.(type) {
			case int:
				length = v
			case int64:
				length = int(v)
			case float64:
				length = int(v)
			case string:
				fmt.Sscanf(v, "%d", &length)
			}
		}

		switch randomType {
		case "NUMERIC":
			return generateRandomString(numericChars, length)
		default:
			return generateRandomString(alphanumericChars, length)
		}
	})

	raymond.RegisterHelper("randomInt", func(options *raymond.Options) string {
		lower := 0
		upper := 100

		if lowerVal := options.HashProp("lower"); lowerVal != nil {
			lower = toInt(lowerVal)
		}
		if upperVal := options.HashProp("upper"); upperVal != nil {
			upper = toInt(upperVal)
		}
		if lower > upper {
			lower, upper = upper, lower
		}

		rangeSize := upper - lower + 1
		num, err := rand.Int(rand.Reader, big.NewInt(int64(rangeSize)))
		if err != nil {
			return "0"
		}

		return fmt.Sprintf("%d", int(num.Int64())+lower)
	})

	// faker helper for realistic seed data in question scripts
	raymond.RegisterHelper("faker", func(key string) string {
		r := gofakeit.New(0)

		category, sub, _ := strings.Cut(key, ".")
		switch category {
		case "Person":
			switch sub {
			case "first_name":
				return r.FirstName()
			case "last_name":
				return r.LastName()
			case "full_name":
				return r.Name()
			case "phone":
				return r.Phone()
			case "email":
				return r.Email()
			}
		case "Address":
			switch sub {
			case "street":
				return r.Street()
			case "city":
				return r.City()
			case "postcode":
				return r.Zip()
			}
		case "Order":
			switch sub {
			case "product":
				return r.ProductName()
			case "price":
				return fmt.Sprintf("%.2f", r.Price(1, 500))
			}
		}
		return ""
	})
}

func generateRandomString(chars string, length int) string {
	if length <= 0 {
		return ""
	}
	result := make([]byte, length)
	max := big.NewInt(int64(len(chars)))
	for i := range result {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return ""
		}
		result[i] = chars[num.Int64()]
	}
	return string(result)
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var parsed int
		fmt.Sscanf(n, "%d", &parsed)
		return parsed
	}
	return 0
}
