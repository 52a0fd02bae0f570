// Package handler provides task handlers for processing queued operations.
package handler

import (
	"fmt"
)

// ExtractString extracts a string value from the payload.
func ExtractString(payload map[string]any, key string) (string, error) {
	val, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("missing required field: %s", key)
	}

	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("invalid type for %s: expected string, got %T", key, val)
	}
	if s == "" {
		return "", fmt.Errorf("empty required field: %s", key)
	}

	return s, nil
}

// AssetPayload holds the tenant_id and asset_id fields of an asset task.
type AssetPayload struct {
	tenantID string
	assetID  string
}

// TenantID returns the tenant.
func (p AssetPayload) TenantID() string { return p.tenantID }

// AssetID returns the asset.
func (p AssetPayload) AssetID() string { return p.assetID }

// ExtractAssetPayload extracts the tenant_id and asset_id fields from a
// task payload.
func ExtractAssetPayload(payload map[string]any) (AssetPayload, error) {
	tenantID, err := ExtractString(payload, "tenant_id")
	if err != nil {
		return AssetPayload{}, err
	}

	assetID, err := ExtractString(payload, "asset_id")
	if err != nil {
		return AssetPayload{}, err
	}

	return AssetPayload{tenantID: tenantID, assetID: assetID}, nil
}
