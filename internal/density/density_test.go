package density

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	c, err := NewClassifier(5, 15)
	require.NoError(t, err)

	assert.Equal(t, Low, c.Classify(0))
	assert.Equal(t, Low, c.Classify(5))
	assert.Equal(t, Medium, c.Classify(6))
	assert.Equal(t, Medium, c.Classify(15))
	assert.Equal(t, High, c.Classify(16))
	assert.Equal(t, High, c.Classify(1000))
}

func TestClassifyEqualThresholds(t *testing.T) {
	c := Classifier{LowMax: 3, HighMax: 3}

	assert.Equal(t, Low, c.Classify(3))
	assert.Equal(t, High, c.Classify(4))
}

func TestNewClassifierRejectsInvertedThresholds(t *testing.T) {
	_, err := NewClassifier(10, 5)
	assert.Error(t, err)

	_, err = NewClassifier(-1, 5)
	assert.Error(t, err)
}
