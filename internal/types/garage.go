package types

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	disallowedChar = regexp.MustCompile(`[^a-z0-9-]`)
)

// GarageInfo is the slowly-changing descriptive record of a garage.
type GarageInfo struct {
	GarageID   string `json:"garage_id"`
	GarageName string `json:"garage_name"`
	Address    string `json:"address"`
	MapURL     string `json:"map_url,omitempty"`
}

// DeriveGarageID turns a display name into the stable garage identifier:
// lowercase, whitespace runs collapsed to one hyphen, anything outside
// [a-z0-9-] dropped. The result is idempotent under DeriveGarageID.
func DeriveGarageID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = whitespaceRun.ReplaceAllString(id, "-")
	id = disallowedChar.ReplaceAllString(id, "")
	return strings.Trim(id, "-")
}
