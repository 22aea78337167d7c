package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	assetsPath      = "/assets/v1/assets"
	operationsPath  = "/assets/v1/"
	permissionsPath = "/asset-permissions-api/v1/assets/permissions"
	deliveryPath    = "/asset-delivery-api/v1/assetId/"

	inventoryPageSize = 100
	inventoryFilter   = "inventoryItemAssetTypes=MODEL,PACKAGE"
	maxInventoryPages = 1000

	DefaultBaseURL = "https://apis.roblox.com"
)

// AssetID decodes from either a JSON number or a numeric string; the service
// uses both depending on the endpoint.
type AssetID int64

func (id *AssetID) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if text == "" || text == "null" {
		*id = 0
		return nil
	}
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return fmt.Errorf("asset id %s: %w", data, err)
	}
	*id = AssetID(value)
	return nil
}

type CreateAssetRequest struct {
	AssetType       string          `json:"assetType"`
	DisplayName     string          `json:"displayName"`
	Description     string          `json:"description"`
	CreationContext CreationContext `json:"creationContext"`
}

type CreationContext struct {
	Creator Creator `json:"creator"`
}

type Creator struct {
	UserID int64 `json:"userId"`
}

type UpdateAssetRequest struct {
	AssetID     int64  `json:"assetId"`
	Description string `json:"description"`
}

// AssetResult is the response of a completed create or update operation.
type AssetResult struct {
	AssetID     AssetID `json:"assetId"`
	DisplayName string  `json:"displayName,omitempty"`
	Description string  `json:"description,omitempty"`
	RevisionID  string  `json:"revisionId,omitempty"`
}

type AssetOperation = Operation[AssetResult]

type permissionGrantRequest struct {
	SubjectType           string                 `json:"subjectType"`
	SubjectID             string                 `json:"subjectId"`
	Action                string                 `json:"action"`
	Requests              []permissionAssetGrant `json:"requests"`
	EnableDeepAccessCheck bool                   `json:"enableDeepAccessCheck"`
}

type permissionAssetGrant struct {
	GrantToDependencies bool  `json:"grantToDependencies"`
	AssetID             int64 `json:"assetId"`
}

type permissionGrantResponse struct {
	SuccessAssetIDs []AssetID         `json:"successAssetIds"`
	Errors          []json.RawMessage `json:"errors"`
}

type inventoryPage struct {
	InventoryItems []struct {
		AssetDetails *struct {
			AssetID AssetID `json:"assetId"`
		} `json:"assetDetails"`
	} `json:"inventoryItems"`
	NextPageToken string `json:"nextPageToken"`
}

type deliveryLocation struct {
	Location string `json:"location"`
}

// Cloud is the typed surface of the asset service used by the gateway.
type Cloud struct {
	client  *Client
	poller  *Poller
	baseURL string
}

func NewCloud(client *Client, poller *Poller, baseURL string) *Cloud {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Cloud{client: client, poller: poller, baseURL: baseURL}
}

// ListInventory returns the model and package asset IDs owned by userID,
// following pagination to the end.
func (c *Cloud) ListInventory(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	seen := map[string]bool{}
	token := ""
	for page := 0; page < maxInventoryPages; page++ {
		query := url.Values{}
		query.Set("maxPageSize", strconv.Itoa(inventoryPageSize))
		query.Set("filter", inventoryFilter)
		if token != "" {
			query.Set("pageToken", token)
		}
		target := fmt.Sprintf("%s/cloud/v2/users/%d/inventory-items?%s", c.baseURL, userID, query.Encode())

		result, err := DoJSON[inventoryPage](ctx, c.client, Request{Method: http.MethodGet, URL: target})
		if err != nil {
			return nil, err
		}
		for _, item := range result.InventoryItems {
			if item.AssetDetails == nil || item.AssetDetails.AssetID == 0 {
				continue
			}
			ids = append(ids, int64(item.AssetDetails.AssetID))
		}

		token = result.NextPageToken
		if token == "" || seen[token] {
			return ids, nil
		}
		seen[token] = true
	}
	return ids, nil
}

// CreateAsset submits a multipart create request and returns the operation
// handle.
func (c *Cloud) CreateAsset(ctx context.Context, form *AssetForm) (AssetOperation, error) {
	return DoJSON[AssetOperation](ctx, c.client, Request{
		Method:      http.MethodPost,
		URL:         c.baseURL + assetsPath,
		Body:        bytes.NewReader(form.Body),
		ContentType: form.ContentType,
	})
}

// UpdateAsset submits new content for assetID. Only the description is named
// in the update mask; the file part always replaces the content.
func (c *Cloud) UpdateAsset(ctx context.Context, assetID int64, form *AssetForm) (AssetOperation, error) {
	target := fmt.Sprintf("%s%s/%d?updateMask=description", c.baseURL, assetsPath, assetID)
	return DoJSON[AssetOperation](ctx, c.client, Request{
		Method:      http.MethodPatch,
		URL:         target,
		Body:        bytes.NewReader(form.Body),
		ContentType: form.ContentType,
	})
}

// WaitForAsset polls op until it completes.
func (c *Cloud) WaitForAsset(ctx context.Context, op AssetOperation) (AssetResult, error) {
	return Poll(ctx, c.poller, c.baseURL+operationsPath, op)
}

// GrantUse lets universeID use assetID and its dependencies. A 2xx response
// that still lists errors yields a *GrantError.
func (c *Cloud) GrantUse(ctx context.Context, universeID, assetID int64) error {
	body, err := json.Marshal(permissionGrantRequest{
		SubjectType: "Universe",
		SubjectID:   strconv.FormatInt(universeID, 10),
		Action:      "Use",
		Requests: []permissionAssetGrant{
			{GrantToDependencies: true, AssetID: assetID},
		},
		EnableDeepAccessCheck: false,
	})
	if err != nil {
		return fmt.Errorf("upstream: encode permission grant: %w", err)
	}

	resp, err := c.client.Do(ctx, Request{
		Method:      http.MethodPatch,
		URL:         c.baseURL + permissionsPath,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
	})
	if err != nil {
		return err
	}

	var result permissionGrantResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return fmt.Errorf("upstream: decode permission grant response: %w", err)
	}
	if len(result.Errors) == 0 {
		return nil
	}
	message, ok := NormalizeJSON(resp.Body)
	if !ok || message == "" {
		message = "permission grant reported errors"
	}
	return &GrantError{AssetID: assetID, Message: message}
}

// AssetLocation resolves the download location of a model asset.
func (c *Cloud) AssetLocation(ctx context.Context, assetID int64) (string, error) {
	header := http.Header{}
	header.Set("AssetType", "Model")
	result, err := DoJSON[deliveryLocation](ctx, c.client, Request{
		Method: http.MethodGet,
		URL:    c.baseURL + deliveryPath + strconv.FormatInt(assetID, 10),
		Header: header,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(result.Location) == "" {
		return "", errors.New("upstream: asset delivery returned no location")
	}
	return result.Location, nil
}

// DownloadContent fetches and decodes the bytes at a delivery location.
func (c *Cloud) DownloadContent(ctx context.Context, location string) ([]byte, error) {
	if endsWithSeparator(location) {
		return nil, fmt.Errorf("upstream: unusable delivery location %q", location)
	}
	header := http.Header{}
	header.Set("Accept-Encoding", "gzip, deflate, zstd")
	resp, err := c.client.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    location,
		Header: header,
		Binary: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
