package ollama

import (
	"fmt"
	"os"
)

// ImageFromFile reads an image file for use in Message.Images or
// GenerateRequest.Images.
func ImageFromFile(filename string) (Image, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading image file: %w", err)
	}
	return Image(data), nil
}

func ptr[T any](v T) *T { return &v }
