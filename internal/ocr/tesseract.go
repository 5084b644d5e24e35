package ocr

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// tesseractRecognizer drives one long-lived tesseract client. Pool
// workers own one each; the client is reconfigured per pass.
type tesseractRecognizer struct {
	client *gosseract.Client
}

// NewTesseractFactory returns a RecognizerFactory backed by tesseract.
func NewTesseractFactory(language, tessdataDir string) RecognizerFactory {
	return func() (Recognizer, error) {
		client := gosseract.NewClient()
		if language != "" {
			if err := client.SetLanguage(language); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("set language %q: %w", language, err)
			}
		}
		if tessdataDir != "" {
			if err := client.SetTessdataPrefix(tessdataDir); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("set tessdata dir: %w", err)
			}
		}
		return &tesseractRecognizer{client: client}, nil
	}
}

func (t *tesseractRecognizer) Recognize(img []byte, mode PassMode) (string, error) {
	if err := t.client.SetPageSegMode(mode.pageSegMode()); err != nil {
		return "", fmt.Errorf("set psm: %w", err)
	}
	if err := t.client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

func (t *tesseractRecognizer) Close() error {
	return t.client.Close()
}

func (m PassMode) pageSegMode() gosseract.PageSegMode {
	switch m {
	case PassSingleBlock:
		return gosseract.PSM_SINGLE_BLOCK
	case PassSparseText:
		return gosseract.PSM_SPARSE_TEXT
	default:
		return gosseract.PSM_AUTO
	}
}
