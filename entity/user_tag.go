package entity

import (
	"strings"
	"time"
)

type UserTag struct {
	Username       string    `json:"username" bson:"username"`
	IdTag          string    `json:"id_tag" bson:"id_tag"`
	Source         string    `json:"source" bson:"source"`
	IsEnabled      bool      `json:"is_enabled" bson:"is_enabled"`
	ExpiryDate     string    `json:"expiry_date,omitempty" bson:"expiry_date,omitempty"`
	Note           string    `json:"note" bson:"note"`
	DateRegistered time.Time `json:"date_registered" bson:"date_registered"`
}

// SplitIdTag charge points may prefix the id tag with a source, separated by a colon.
func SplitIdTag(idTag string) (string, string) {
	if source, id, found := strings.Cut(idTag, ":"); found {
		return source, id
	}
	return "", idTag
}
