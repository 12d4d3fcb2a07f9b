package namematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "joao carlos silva", Normalize("  João   Carlos  SILVA "))
	assert.Equal(t, "educacao fisica", Normalize("Educação Física"))
	assert.Equal(t, "", Normalize("   "))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("MATEMÁTICA", "matematica"))
	assert.True(t, Equal("Ciências ", "ciencias"))
	assert.False(t, Equal("historia", "geografia"))
}

func TestPartialMatch(t *testing.T) {
	assert.True(t, PartialMatch("João Carlos Silva", "JOAO SILVA"))
	assert.True(t, PartialMatch("Maria de Fátima Souza", "maria souza"))
	assert.False(t, PartialMatch("João Carlos Silva", "Carlos João"))
	assert.False(t, PartialMatch("", "Maria"))
}

func TestResolveAlias(t *testing.T) {
	assert.Equal(t, "portugues", ResolveAlias("Língua Portuguesa"))
	assert.Equal(t, "ed fisica", ResolveAlias("EDUCAÇÃO FÍSICA"))
	assert.Equal(t, "", ResolveAlias("Matemática"))
}
