package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"What is the weather like in Amsterdam today?", "en", true},
		{"Wat is het weer vandaag in Nijmegen en hoe koud is het?", "nl", true},
		{"Wie ist das Wetter heute und ist es kalt für mich?", "de", true},
		{"Quel temps fait-il aujourd'hui et est-ce que je sors avec le chien?", "fr", true},
		{"", "", false},
		{"xyz qqq", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Heuristic{}.Detect(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWhatlang_ShortTextNotConfident(t *testing.T) {
	_, ok := NewWhatlang(0).Detect("hi")
	assert.False(t, ok)
}

func TestWhatlang_LongEnglish(t *testing.T) {
	code, ok := NewWhatlang(0.1).Detect("The quick brown fox jumps over the lazy dog while the children are playing in the garden behind the house.")
	if ok {
		assert.Equal(t, "en", code)
	}
}

type fixed struct {
	code string
	ok   bool
}

func (f fixed) Detect(string) (string, bool) { return f.code, f.ok }

func TestChain(t *testing.T) {
	c := Chain{nil, fixed{"", false}, fixed{"nl", true}, fixed{"en", true}}
	code, ok := c.Detect("anything")
	assert.True(t, ok)
	assert.Equal(t, "nl", code)

	_, ok = Chain{}.Detect("anything")
	assert.False(t, ok)
}

func TestFromNames(t *testing.T) {
	c := FromNames([]string{" Whatlang ", "heuristic", "bogus"})
	assert.Len(t, c, 2)
	_, isHeuristic := c[1].(Heuristic)
	assert.True(t, isHeuristic)
}
