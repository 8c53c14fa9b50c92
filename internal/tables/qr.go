// Package tables renders the QR codes printed on restaurant tables.
package tables

import (
	"fmt"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/skip2/go-qrcode"
)

const MaxTableNumber = 999

type QRGenerator struct {
	baseURL string
	size    int
	cache   *lru.Cache[int, []byte]
}

func NewQRGenerator(baseURL string, size, cacheSize int) (*QRGenerator, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid public base url %q: %w", baseURL, err)
	}
	if size <= 0 {
		size = 256
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[int, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	return &QRGenerator{baseURL: strings.TrimRight(baseURL, "/"), size: size, cache: cache}, nil
}

// MenuURL is the address a guest lands on after scanning the code of table.
func (q *QRGenerator) MenuURL(table int) string {
	return fmt.Sprintf("%s/menu?table=%d", q.baseURL, table)
}

// PNG returns the QR code for table. Rendered images are cached.
func (q *QRGenerator) PNG(table int) ([]byte, error) {
	if table < 1 || table > MaxTableNumber {
		return nil, fmt.Errorf("table number must be between 1 and %d", MaxTableNumber)
	}
	if png, ok := q.cache.Get(table); ok {
		return png, nil
	}

	png, err := qrcode.Encode(q.MenuURL(table), qrcode.Medium, q.size)
	if err != nil {
		return nil, err
	}
	q.cache.Add(table, png)
	return png, nil
}

func (q *QRGenerator) Cached() int {
	return q.cache.Len()
}
