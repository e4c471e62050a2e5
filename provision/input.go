package provision

import (
	"errors"
	"fmt"
)

// ProductVersion tags every provisioned account with the factory release
// that created it.
const ProductVersion = "1.0.0"

// Tag is one account tag as a Key/Value pair.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// ADIntegrationPair binds a permission set to the directory group that
// should receive it.
type ADIntegrationPair struct {
	PermissionSetName        string `json:"PermissionSetName"`
	ActiveDirectoryGroupName string `json:"ActiveDirectoryGroupName"`
}

// AccountInfo is the submission input for the provisioning graphs.
type AccountInfo struct {
	AccountName               string              `json:"AccountName"`
	AccountEmail              string              `json:"AccountEmail,omitempty"`
	SupportDL                 string              `json:"SupportDL"`
	ManagedOrganizationalUnit string              `json:"ManagedOrganizationalUnit"`
	AccountTags               []Tag               `json:"AccountTags,omitempty"`
	ADIntegration             []ADIntegrationPair `json:"ADIntegration,omitempty"`
	ForceUpdate               bool                `json:"ForceUpdate,omitempty"`
	BypassCreation            bool                `json:"BypassCreation,omitempty"`
}

// Validate checks the required fields and the shape of the optional AD
// integration pairs.
func (a *AccountInfo) Validate() error {
	if a.AccountName == "" {
		return errors.New("provision: AccountName is required")
	}
	if a.SupportDL == "" {
		return errors.New("provision: SupportDL is required")
	}
	if a.ManagedOrganizationalUnit == "" {
		return errors.New("provision: ManagedOrganizationalUnit is required")
	}
	for i, pair := range a.ADIntegration {
		if pair.PermissionSetName == "" || pair.ActiveDirectoryGroupName == "" {
			return fmt.Errorf("provision: ADIntegration[%d]: both PermissionSetName and ActiveDirectoryGroupName are required", i)
		}
	}
	return nil
}

// DefaultTags returns the tag set every account carries. Caller-supplied
// tags are appended after these.
func (a *AccountInfo) DefaultTags() []Tag {
	return []Tag{
		{Key: "account-name", Value: a.AccountName},
		{Key: "vendor", Value: "aws"},
		{Key: "product-version", Value: ProductVersion},
		{Key: "support-dl", Value: a.SupportDL},
	}
}

// Input validates the AccountInfo and builds the graph submission input:
// the AccountInfo object under the "AccountInfo" key, with the default tags
// prepended to any caller-supplied ones.
func (a *AccountInfo) Input() (map[string]any, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	tags := append(a.DefaultTags(), a.AccountTags...)
	tagMaps := make([]any, 0, len(tags))
	for _, t := range tags {
		tagMaps = append(tagMaps, map[string]any{"Key": t.Key, "Value": t.Value})
	}

	info := map[string]any{
		"AccountName":               a.AccountName,
		"SupportDL":                 a.SupportDL,
		"ManagedOrganizationalUnit": a.ManagedOrganizationalUnit,
		"AccountTags":               tagMaps,
		"ForceUpdate":               a.ForceUpdate,
		"BypassCreation":            a.BypassCreation,
	}
	if a.AccountEmail != "" {
		info["AccountEmail"] = a.AccountEmail
	}
	if len(a.ADIntegration) > 0 {
		pairs := make([]any, 0, len(a.ADIntegration))
		for _, pair := range a.ADIntegration {
			pairs = append(pairs, map[string]any{
				"PermissionSetName":        pair.PermissionSetName,
				"ActiveDirectoryGroupName": pair.ActiveDirectoryGroupName,
			})
		}
		info["ADIntegration"] = pairs
	}

	return map[string]any{"AccountInfo": info}, nil
}
