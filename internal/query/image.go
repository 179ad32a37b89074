package query

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Image is a product image given either as a file path or as bytes.
type Image struct {
	Path string
	Data []byte
}

// ImageFromFile refers to an image on disk.
func ImageFromFile(path string) *Image { return &Image{Path: path} }

// ImageFromBytes wraps uploaded image bytes.
func ImageFromBytes(b []byte) *Image { return &Image{Data: b} }

func (i *Image) bytes() ([]byte, error) {
	if len(i.Data) > 0 {
		return i.Data, nil
	}
	if i.Path == "" {
		return nil, errors.New("empty image")
	}
	return os.ReadFile(i.Path)
}

// DataURL validates the image and returns it as a base64 data URL.
func (i *Image) DataURL() (string, error) {
	b, err := i.bytes()
	if err != nil {
		return "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}
