package tables

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRGenerator_PNG(t *testing.T) {
	q, err := NewQRGenerator("https://pos.example.com/", 200, 2)
	require.NoError(t, err)

	assert.Equal(t, "https://pos.example.com/menu?table=12", q.MenuURL(12))

	data, err := q.PNG(12)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	again, err := q.PNG(12)
	require.NoError(t, err)
	assert.Equal(t, data, again)
	assert.Equal(t, 1, q.Cached())
}

func TestQRGenerator_CacheEvicts(t *testing.T) {
	q, err := NewQRGenerator("https://pos.example.com", 0, 2)
	require.NoError(t, err)

	for _, table := range []int{1, 2, 3} {
		_, err := q.PNG(table)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, q.Cached())
}

func TestQRGenerator_Bounds(t *testing.T) {
	q, err := NewQRGenerator("https://pos.example.com", 0, 0)
	require.NoError(t, err)

	_, err = q.PNG(0)
	assert.Error(t, err)
	_, err = q.PNG(MaxTableNumber + 1)
	assert.Error(t, err)

	_, err = NewQRGenerator("not a url", 0, 0)
	assert.Error(t, err)
}
