package templates

import (
	"strconv"
	"testing"

	"github.com/aymerick/raymond"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, source string) string {
	t.Helper()
	NewTemplateEngine()

	out, err := raymond.Render(source, nil)
	require.NoError(t, err)
	return out
}

func TestNewTemplateEngineSingleton(t *testing.T) {
	first := NewTemplateEngine()
	second := NewTemplateEngine()
	assert.Same(t, first, second)
}

func TestRandomValueHelper(t *testing.T) {
	t.Run("Default is alphanumeric of length 10", func(t *testing.T) {
		out := render(t, `{{randomValue}}`)
		assert.Len(t, out, 10)
	})

	t.Run("Numeric with explicit length", func(t *testing.T) {
		out := render(t, `{{randomValue type="NUMERIC" length=6}}`)
		require.Len(t, out, 6)
		_, err := strconv.Atoi(out)
		assert.NoError(t, err)
	})

	t.Run("UUID", func(t *testing.T) {
		out := render(t, `{{randomValue type="UUID"}}`)
		_, err := uuid.Parse(out)
		assert.NoError(t, err)
	})
}

func TestRandomIntHelper(t *testing.T) {
	for i := 0; i < 20; i++ {
		out := render(t, `{{randomInt lower=5 upper=8}}`)
		n, err := strconv.Atoi(out)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 5)
		assert.LessOrEqual(t, n, 8)
	}
}

func TestFakerHelper(t *testing.T) {
	t.Run("Known keys produce values", func(t *testing.T) {
		for _, key := range []string{
			"Person.first_name",
			"Person.phone",
			"Person.email",
			"Address.city",
			"Order.product",
		} {
			out := render(t, `{{faker "`+key+`"}}`)
			assert.NotEmpty(t, out, "faker key %s", key)
		}
	})

	t.Run("Unknown key renders empty", func(t *testing.T) {
		out := render(t, `{{faker "Person.shoe_size"}}`)
		assert.Empty(t, out)
	})
}
