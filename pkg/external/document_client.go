package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/gc-eligibility-server/internal/domain"
)

const convertPath = "/convert"

// ErrUnsupportedDocument is returned for document types the converter does
// not accept or for text files that are not valid UTF-8.
var ErrUnsupportedDocument = errors.New("unsupported document")

// ErrDocumentServiceUnavailable is returned when a binary document arrives
// but no conversion service is configured.
var ErrDocumentServiceUnavailable = errors.New("document conversion service not configured")

// DocumentClient turns uploaded documents into plain text. Plain text files
// are decoded locally; PDF and DOCX bytes are forwarded untouched to the
// conversion service.
type DocumentClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDocumentClient creates a new document conversion client
func NewDocumentClient(config domain.DocumentConfig, logger *logrus.Logger) *DocumentClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DocumentClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

var _ domain.DocumentConverter = (*DocumentClient)(nil)

// Convert returns the text content of the document.
func (d *DocumentClient) Convert(ctx context.Context, filename string, docType domain.DocumentType, content []byte) (*domain.DocumentText, error) {
	if !docType.IsValid() {
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedDocument, docType)
	}
	if docType == domain.DOCUMENT_TXT {
		return decodeText(content)
	}
	if d.baseURL == "" {
		return nil, ErrDocumentServiceUnavailable
	}

	body, contentType, err := multipartBody(filename, docType, content)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+convertPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document conversion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("document service returned status %d", resp.StatusCode)
	}

	var result domain.DocumentText
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode document service response: %w", err)
	}
	if !result.Success {
		return &result, fmt.Errorf("document conversion failed: %s", result.Error)
	}

	d.logger.WithFields(logrus.Fields{
		"type":     docType,
		"bytes":    len(content),
		"duration": time.Since(start),
	}).Debug("Converted document to text")
	return &result, nil
}

func decodeText(content []byte) (*domain.DocumentText, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: text file is not valid UTF-8", ErrUnsupportedDocument)
	}
	return &domain.DocumentText{Text: string(content), Success: true}, nil
}

func multipartBody(filename string, docType domain.DocumentType, content []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if filename == "" {
		filename = "document." + string(docType)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.WriteField("type", string(docType)); err != nil {
		return nil, "", fmt.Errorf("failed to write type field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
