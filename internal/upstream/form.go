package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

const (
	modelFileName    = "asset.rbxm"
	modelContentType = "model/x-rbxm"
)

// AssetForm is a multipart body for the create and update endpoints.
type AssetForm struct {
	Body        []byte
	ContentType string
}

// NewAssetForm encodes metadata as the "request" part and content as the
// "fileContent" file part.
func NewAssetForm(metadata any, content []byte) (*AssetForm, error) {
	request, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("upstream: encode asset metadata: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="fileContent"; filename="%s"`, modelFileName))
	header.Set("Content-Type", modelContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("upstream: create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("upstream: write file part: %w", err)
	}
	if err := writer.WriteField("request", string(request)); err != nil {
		return nil, fmt.Errorf("upstream: write request part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("upstream: close form: %w", err)
	}
	return &AssetForm{Body: buf.Bytes(), ContentType: writer.FormDataContentType()}, nil
}
