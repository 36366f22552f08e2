package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextSet_FallsBackToDefault(t *testing.T) {
	set := NewSet("Score %d/10", NewTrans(Rus, "Оценка %d/10"))

	assert.Equal(t, "Score 9/10", set.Format(Eng, 9))
	assert.Equal(t, "Оценка 9/10", set.Format(Rus, 9))
	assert.Equal(t, "Score %d/10", set.Text(Language("de")))
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, Rus, ParseLanguage("ru-RU"))
	assert.Equal(t, Rus, ParseLanguage("RU"))
	assert.Equal(t, Eng, ParseLanguage("de"))
	assert.Equal(t, Eng, ParseLanguage(""))
}
