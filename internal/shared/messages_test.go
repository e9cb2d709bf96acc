package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleForResolvesLanguage(t *testing.T) {
	assert.Equal(t, "Insufficient stock", TitleFor(KindInsufficientStock, "en-US"))
	assert.Equal(t, "الكمية غير متوفرة في المخزون", TitleFor(KindInsufficientStock, "ar"))
	// Regional variants collapse to the base language.
	assert.Equal(t, "الكمية غير متوفرة في المخزون", TitleFor(KindInsufficientStock, "ar-EG"))
}

func TestTitleForFallsBack(t *testing.T) {
	// Unsupported languages fall back to English.
	assert.Equal(t, "Record not found", TitleFor(KindNotFound, "fr-FR"))
	// Missing header matches the first supported tag.
	assert.Equal(t, "Record not found", TitleFor(KindNotFound, ""))
	// Unknown kinds get a generic title.
	assert.Equal(t, "Operation failed", TitleFor(Kind("SOMETHING_ELSE"), "en"))
}
