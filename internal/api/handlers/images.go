package handlers

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errEmptyImage = errors.New("image is empty")

// DecodeImage akzeptiert Data-URIs und reines Base64 (Standard- oder URL-Alphabet, mit oder ohne Padding)
func DecodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, errors.New("data URI must be base64 encoded")
		}
		s = s[i+1:]
	}
	if s == "" {
		return nil, errEmptyImage
	}

	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(s)
		if err == nil {
			if len(data) == 0 {
				return nil, errEmptyImage
			}
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
