package testdata

import (
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

func RandomName() string {
	return gofakeit.Name()
}

func RandomDescription() string {
	return gofakeit.Sentence(8)
}

func RandomQuestion() string {
	return gofakeit.Question()
}

func RandomWord() string {
	return gofakeit.Word()
}

// RandomID returns prefix followed by a dash and eight lowercase letters.
func RandomID(prefix string) string {
	return prefix + "-" + strings.ToLower(gofakeit.LetterN(8))
}

func RandomInt(min, max int) int {
	return gofakeit.Number(min, max)
}
