package fundus

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"
)

// ErrUnsupportedFormat is returned for files whose extension is not a
// supported raster format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrNotLoaded is returned when an operation needs the base pixels of an
// image that is still loading.
var ErrNotLoaded = errors.New("image not loaded")

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// Decode reads a raster from path.
func Decode(path string) (image.Image, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Load creates an Image from the file at path and, if segPath is not
// empty, attaches its segmentation layer.
func Load(path, segPath string) (*Image, error) {
	base, err := Decode(path)
	if err != nil {
		return nil, err
	}

	img := New(filepath.Base(path))
	img.Path = path
	img.SetBase(base)

	if segPath != "" {
		seg, err := Decode(segPath)
		if err != nil {
			return nil, fmt.Errorf("segmentation: %w", err)
		}
		img.SetSegmentation(seg)
	}

	return img, nil
}

// LoadAsync creates an unloaded Image for path and decodes it in the
// background. The base is attached with SetBase once decoding finishes, so
// listeners see EventBaseLoaded. Decoding errors are passed to onErr along
// with the image that will never load.
func LoadAsync(path string, onErr func(img *Image, err error)) *Image {
	img := New(filepath.Base(path))
	img.Path = path

	go func() {
		base, err := Decode(path)
		if err != nil {
			if onErr != nil {
				onErr(img, err)
			}
			return
		}
		img.SetBase(base)
	}()

	return img
}
