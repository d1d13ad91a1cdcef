package generic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// maxBody caps how much of a response the parsers read.
const maxBody = 16 << 20

func NewDocument(resp *http.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if resp.Request != nil && resp.Request.URL != nil {
		doc.Url = resp.Request.URL
	}

	return doc, nil
}

func DecodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

func ReadBody(resp *http.Response) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return b, nil
}
